package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jensholdgaard/cricket-auction/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "valid full config",
			yaml: `
discord:
  token: "test-token"
  guild_id: "123456"
database:
  driver: "postgres"
  host: "db.example.com"
  port: 5433
  user: "auction"
  password: "secret"
  dbname: "auction"
  sslmode: "require"
server:
  port: 9090
auction:
  purse: 900000000
  sync_interval: 250ms
  rand_seed: 7
admin:
  password_hash: "$2a$10$abc"
  jwt_secret: "s3cret"
http:
  cors_origins: ["https://auction.example.com"]
telemetry:
  service_name: "my-auction"
  otlp_endpoint: "localhost:4318"
`,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Discord.Token != "test-token" {
					t.Errorf("got token %q, want %q", cfg.Discord.Token, "test-token")
				}
				if cfg.Database.Port != 5433 {
					t.Errorf("got db port %d, want %d", cfg.Database.Port, 5433)
				}
				if cfg.Server.Port != 9090 {
					t.Errorf("got server port %d, want %d", cfg.Server.Port, 9090)
				}
				if cfg.Auction.Purse != 900_000_000 {
					t.Errorf("got purse %d, want %d", cfg.Auction.Purse, 900_000_000)
				}
				if cfg.Auction.SyncInterval != 250*time.Millisecond {
					t.Errorf("got sync interval %v, want 250ms", cfg.Auction.SyncInterval)
				}
				if cfg.Auction.RandSeed != 7 {
					t.Errorf("got rand seed %d, want 7", cfg.Auction.RandSeed)
				}
				if len(cfg.HTTP.CORSOrigins) != 1 || cfg.HTTP.CORSOrigins[0] != "https://auction.example.com" {
					t.Errorf("got cors origins %v", cfg.HTTP.CORSOrigins)
				}
				if cfg.Telemetry.ServiceName != "my-auction" {
					t.Errorf("got service name %q, want %q", cfg.Telemetry.ServiceName, "my-auction")
				}
			},
		},
		{
			name: "defaults applied",
			yaml: `
discord:
  token: "tok"
`,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Database.Driver != "bolt" {
					t.Errorf("got driver %q, want %q", cfg.Database.Driver, "bolt")
				}
				if cfg.Database.Path != "auction.db" {
					t.Errorf("got path %q, want %q", cfg.Database.Path, "auction.db")
				}
				if cfg.Server.Port != 8080 {
					t.Errorf("got server port %d, want %d", cfg.Server.Port, 8080)
				}
				if cfg.Auction.Purse != 1_200_000_000 {
					t.Errorf("got purse %d, want %d", cfg.Auction.Purse, 1_200_000_000)
				}
				if cfg.Auction.SyncInterval != time.Second {
					t.Errorf("got sync interval %v, want 1s", cfg.Auction.SyncInterval)
				}
				if cfg.Telemetry.ServiceName != "auctiond" {
					t.Errorf("got service name %q, want %q", cfg.Telemetry.ServiceName, "auctiond")
				}
				if cfg.LeaderElection.LeaseName != "auctiond-leader" {
					t.Errorf("got lease name %q, want %q", cfg.LeaderElection.LeaseName, "auctiond-leader")
				}
			},
		},
		{
			name:    "invalid yaml",
			yaml:    `{{{invalid`,
			wantErr: true,
		},
		{
			name: "sqlite driver accepted",
			yaml: `
database:
  driver: "sqlite"
  path: "auction.sqlite"
`,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Database.Driver != "sqlite" {
					t.Errorf("got driver %q, want %q", cfg.Database.Driver, "sqlite")
				}
			},
		},
		{
			name: "invalid driver rejected",
			yaml: `
database:
  driver: "mongodb"
`,
			wantErr: true,
		},
		{
			name: "embedded driver without path rejected",
			yaml: `
database:
  driver: "bolt"
  path: ""
`,
			wantErr: true,
		},
		{
			name: "non-positive purse rejected",
			yaml: `
auction:
  purse: 0
`,
			wantErr: true,
		},
		{
			name: "password hash without secret rejected",
			yaml: `
admin:
  password_hash: "$2a$10$abc"
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load(writeConfig(t, tt.yaml))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && cfg != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AUCTION_DB_DRIVER", "sqlite")
	t.Setenv("AUCTION_DB_PATH", "/tmp/env.sqlite")
	t.Setenv("AUCTION_PORT", "7070")
	t.Setenv("AUCTION_CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := config.Load(writeConfig(t, `
database:
  driver: "bolt"
server:
  port: 9090
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("got driver %q, want %q", cfg.Database.Driver, "sqlite")
	}
	if cfg.Database.Path != "/tmp/env.sqlite" {
		t.Errorf("got path %q, want %q", cfg.Database.Path, "/tmp/env.sqlite")
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("got port %d, want %d", cfg.Server.Port, 7070)
	}
	if len(cfg.HTTP.CORSOrigins) != 2 {
		t.Errorf("got cors origins %v, want 2 entries", cfg.HTTP.CORSOrigins)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Database.Driver != "bolt" {
		t.Errorf("got driver %q, want %q", cfg.Database.Driver, "bolt")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := config.Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "user",
		Password: "pass",
		DBName:   "testdb",
		SSLMode:  "disable",
	}
	want := "host=localhost port=5432 user=user password=pass dbname=testdb sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
