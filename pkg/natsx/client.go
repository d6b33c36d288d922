package natsx

import (
	"cmp"
	"os"

	"github.com/nats-io/nats.go"
)

// ClientName is the connection name reported to the server.
const ClientName = "synopsys"

// URL returns the NATS_URL environment variable, or the default local server URL.
func URL() string {
	return cmp.Or(os.Getenv("NATS_URL"), nats.DefaultURL)
}

// NewClient creates a new connection to the NATS server named by NATS_URL. Without
// options the connection is named ClientName and uses compression.
func NewClient(opts ...nats.Option) (*nats.Conn, error) {
	if len(opts) == 0 {
		opts = append(opts, nats.Name(ClientName), nats.Compression(true))
	}
	return nats.Connect(URL(), opts...)
}
