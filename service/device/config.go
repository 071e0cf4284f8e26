package device

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultPort is the SSH port used when none is supplied.
const DefaultPort = 22

// Config identifies one FortiGate and the credentials used for a single batch.
// It is never persisted.
type Config struct {
	Host     string `json:"ipHost" yaml:"host"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	Port     Port   `json:"portSsh,omitempty" yaml:"port,omitempty"`
	// Credentials is an optional scy secret reference used when Password is empty.
	Credentials string `json:"credentials,omitempty" yaml:"credentials,omitempty"`
}

// Port holds the raw port value; clients send it either as a number or a string.
type Port string

// UnmarshalJSON accepts a JSON number or string.
func (p *Port) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch actual := raw.(type) {
	case nil:
		*p = ""
	case string:
		*p = Port(strings.TrimSpace(actual))
	case float64:
		*p = Port(strconv.FormatFloat(actual, 'f', -1, 64))
	default:
		*p = Port(fmt.Sprint(actual))
	}
	return nil
}

// Number returns the numeric port, DefaultPort when blank.
func (p Port) Number() (int, error) {
	if strings.TrimSpace(string(p)) == "" {
		return DefaultPort, nil
	}
	port, err := strconv.Atoi(strings.TrimSpace(string(p)))
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid SSH port: %s", string(p))
	}
	return port, nil
}

// IsEmpty reports whether no device was configured at all.
func (c *Config) IsEmpty() bool {
	return c == nil || (strings.TrimSpace(c.Host) == "" && strings.TrimSpace(c.Username) == "")
}

// IsComplete reports whether both host and username are set.
func (c *Config) IsComplete() bool {
	return c != nil && strings.TrimSpace(c.Host) != "" && strings.TrimSpace(c.Username) != ""
}

// Address returns host:port.
func (c *Config) Address(port int) string {
	host := strings.TrimSpace(c.Host)
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	return host + ":" + strconv.Itoa(port)
}
