package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizroom/internal/config"
)

type testConfig struct {
	HTTP struct {
		Port int32
	}

	Store struct {
		Driver string
		Path   string
	}

	Quiz struct {
		CodeLength int
	}

	Auth struct {
		Secret string
		TTL    time.Duration
	}
}

func TestLoad(t *testing.T) {
	tests := map[string]struct {
		yaml    string
		dotenv  string
		env     map[string]string
		assert  func(t *testing.T, c testConfig)
		wantErr bool
	}{
		"file values override defaults": {
			yaml: "http:\n  port: 9090\nstore:\n  driver: postgres\n",
			assert: func(t *testing.T, c testConfig) {
				assert.EqualValues(t, 9090, c.HTTP.Port)
				assert.Equal(t, "postgres", c.Store.Driver)
				assert.Equal(t, 6, c.Quiz.CodeLength, "default kept")
			},
		},
		"environment overrides file": {
			yaml: "http:\n  port: 9090\n",
			env:  map[string]string{"HTTP_PORT": "7070"},
			assert: func(t *testing.T, c testConfig) {
				assert.EqualValues(t, 7070, c.HTTP.Port)
			},
		},
		"environment overrides keys missing from the file": {
			yaml: "http:\n  port: 9090\n",
			env:  map[string]string{"AUTH_SECRET": "from-env", "AUTH_TTL": "2h", "QUIZ_CODELENGTH": "8"},
			assert: func(t *testing.T, c testConfig) {
				assert.EqualValues(t, 9090, c.HTTP.Port)
				assert.Equal(t, "from-env", c.Auth.Secret)
				assert.Equal(t, 2*time.Hour, c.Auth.TTL)
				assert.Equal(t, 8, c.Quiz.CodeLength)
				assert.Equal(t, "sqlite", c.Store.Driver, "untouched default kept")
			},
		},
		"dotenv next to the file is loaded": {
			yaml:   "store:\n  driver: sqlite\n",
			dotenv: "STORE_PATH=/tmp/from-dotenv.db\n",
			assert: func(t *testing.T, c testConfig) {
				assert.Equal(t, "/tmp/from-dotenv.db", c.Store.Path)
			},
		},
		"broken yaml": {
			yaml:    "http: [",
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			file := filepath.Join(dir, "config.yaml")
			require.NoError(t, os.WriteFile(file, []byte(tt.yaml), 0o600))

			if tt.dotenv != "" {
				require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(tt.dotenv), 0o600))
				t.Cleanup(func() { _ = os.Unsetenv("STORE_PATH") })
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			var c testConfig
			c.Quiz.CodeLength = 6
			c.Store.Driver = "sqlite"
			c.Auth.TTL = time.Hour

			err := config.Load(file, &c)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			tt.assert(t, c)
		})
	}
}
