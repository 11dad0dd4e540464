package models

// MConfig Structure
type MConfig struct {
	Name      string           `yaml:"name"`
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	LogLevel  string           `yaml:"log_level"`
	Storage   MStorageConfig   `yaml:"storage"`
	Network   MNetworkConfig   `yaml:"network"`
	Feed      MFeedConfig      `yaml:"feed"`
	Coalescer MCoalescerConfig `yaml:"coalescer"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	RetentionDays      int    `yaml:"retention_days"`
}

type MNetworkConfig struct {
	Enabled            bool     `yaml:"enabled"`
	Proxies            []string `yaml:"proxies"`
	RequestTimeout     int      `yaml:"timeout"`
	MaxRetries         int      `yaml:"retries"`
	ConcurrentRequests int      `yaml:"concurrent_requests"`
	UserAgent          string   `yaml:"user_agent"`
}

type MFeedConfig struct {
	HistoryPoints int             `yaml:"history_points"`
	Sources       []MSourceConfig `yaml:"sources"`
}

type MSourceConfig struct {
	Name                string   `yaml:"name"`
	Type                string   `yaml:"type"` // "kis" or "replay"
	Instruments         []string `yaml:"instruments"`
	Endpoint            string   `yaml:"endpoint"`
	APIKey              string   `yaml:"api_key"` // Optional
	PollIntervalSeconds int      `yaml:"poll_interval_seconds"`
	TicksPerSecond      int      `yaml:"ticks_per_second"` // replay only
}

type MCoalescerConfig struct {
	FlushIntervalMs int `yaml:"flush_interval_ms"`
	MailboxSize     int `yaml:"mailbox_size"`
}
