package config

import (
	"fmt"
	"os"
)

func Template() string {
	return serveTemplate
}

// WriteTemplate writes the annotated default config to path.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(serveTemplate), 0o600)
}

const serveTemplate = `log_level = "info"

[http]
listen_addr = ":8080"
cors_origins = ["http://localhost:3000"]
inspect_timeout = "45s"
shutdown_timeout = "10s"

[queue]
capacity = 100
request_delay = "1.5s"
request_timeout = "10s"
queue_expiry = "30s"
connect_timeout = "30s"

# leave address empty to serve masked links only
[gateway]
address = ""
account = ""
password = ""
max_connect_attempts = 3
dial_timeout = "5s"
security_mode = "development" # development | production (requires mutual tls)
tls = false
tls_mutual = false
# tls_ca_file = "/etc/inspectctl/gateway-ca.crt"
# tls_cert_file = "/etc/inspectctl/client.crt"
# tls_key_file = "/etc/inspectctl/client.key"

[cache]
type = "memory" # memory | redis | none
ttl = "24h"
sweep_interval = "1m"
redis_addr = "localhost:6379"
redis_db = 0
key_prefix = "inspectctl"
`
