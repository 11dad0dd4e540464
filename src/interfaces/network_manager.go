package interfaces

// -----------------------------------------------------------------------------
// INetworkManager defines the contract for HTTP requests with retry/proxy logic.
// -----------------------------------------------------------------------------

type INetworkManager interface {

	// -----------------------------------------------------------------------------

	// Get performs a GET request to the specified URL with query parameters
	// and optional headers. Returns the response body as bytes or an error.
	Get(url string, params map[string]string, headers map[string]string) ([]byte, error)
}
