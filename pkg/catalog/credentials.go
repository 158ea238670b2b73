package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/switchyard-lab/switchyard/pkg/util"
)

// Credential is one username/password pair.
type Credential struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Credentials maps device serials to login material, with a single fallback
// entry for serials without their own credentials.
type Credentials struct {
	BySerial map[string]Credential `yaml:"credentials"`
	Default  Credential            `yaml:"default"`
}

// LoadCredentials reads the credentials file. A missing file is not an
// error: it yields an empty store, and SSH operations against devices
// without a password fail at call time instead.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			util.Warnf("credentials file %s not found", path)
			return &Credentials{BySerial: map[string]Credential{}}, nil
		}
		return nil, fmt.Errorf("reading credentials %s: %w", path, err)
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials %s: %w", path, err)
	}
	if creds.BySerial == nil {
		creds.BySerial = map[string]Credential{}
	}
	return &creds, nil
}

// Lookup returns the credential for a serial: exact match first, else the
// default entry. The username falls back to "admin" when neither names one;
// the password never falls back.
func (c *Credentials) Lookup(serial string) Credential {
	cred, ok := c.BySerial[serial]
	if !ok {
		cred = c.Default
	}
	if cred.Username == "" {
		cred.Username = "admin"
	}
	return cred
}
