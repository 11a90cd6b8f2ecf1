package config

import (
	"testing"
	"time"
)

func TestLoad_AppEnvValidation(t *testing.T) {
	t.Setenv("APP_ENV", "invalid")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid APP_ENV")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServiceName != "league-import" {
		t.Fatalf("unexpected service name: %q", cfg.ServiceName)
	}
	if cfg.SourceDir != "./data" {
		t.Fatalf("unexpected source dir: %q", cfg.SourceDir)
	}
	if cfg.FeedMaxWorkers != 4 {
		t.Fatalf("unexpected feed max workers: %d", cfg.FeedMaxWorkers)
	}
	if cfg.BackupRetain != 10 {
		t.Fatalf("unexpected backup retain: %d", cfg.BackupRetain)
	}
	if cfg.ReportRetain != 30 {
		t.Fatalf("unexpected report retain: %d", cfg.ReportRetain)
	}
	if cfg.ImportSchedule != "0 3 * * *" {
		t.Fatalf("unexpected import schedule: %q", cfg.ImportSchedule)
	}
	if cfg.ImportMaxAttempts != 3 {
		t.Fatalf("unexpected import max attempts: %d", cfg.ImportMaxAttempts)
	}
	if cfg.RunTimeout != 10*time.Minute {
		t.Fatalf("unexpected run timeout: %s", cfg.RunTimeout)
	}
	if !cfg.DBDisablePreparedBinary {
		t.Fatalf("expected DBDisablePreparedBinary=true by default")
	}
}

func TestLoad_PerEnvDBURLOverride(t *testing.T) {
	t.Setenv("APP_ENV", EnvProd)
	t.Setenv("DB_URL", "postgres://fallback:5432/league_import")
	t.Setenv("DB_URL_PROD", "postgres://prod-host:5432/league_import")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBURL != "postgres://prod-host:5432/league_import" {
		t.Fatalf("expected per-env DB URL to win, got %q", cfg.DBURL)
	}
}

func TestLoad_DBURLFallback(t *testing.T) {
	t.Setenv("APP_ENV", EnvStage)
	t.Setenv("DB_URL", "postgres://fallback:5432/league_import")
	t.Setenv("DB_URL_STAGE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBURL != "postgres://fallback:5432/league_import" {
		t.Fatalf("expected fallback DB URL, got %q", cfg.DBURL)
	}
}

func TestLoad_LeaguesParsing(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("IMPORT_LEAGUES", " Spring League , Autumn League ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.Leagues) != 2 {
		t.Fatalf("unexpected leagues length: %d", len(cfg.Leagues))
	}
	if cfg.Leagues[0] != "Spring League" || cfg.Leagues[1] != "Autumn League" {
		t.Fatalf("unexpected leagues: %+v", cfg.Leagues)
	}
}

func TestLoad_WorkerBoundsValidation(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)

	t.Run("zero workers rejected", func(t *testing.T) {
		t.Setenv("FEED_MAX_WORKERS", "0")
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for FEED_MAX_WORKERS=0")
		}
	})

	t.Run("non numeric rejected", func(t *testing.T) {
		t.Setenv("FEED_MAX_WORKERS", "many")
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for non numeric FEED_MAX_WORKERS")
		}
	})
}

func TestLoad_RetryBackoffValidation(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("IMPORT_RETRY_BACKOFF", "-5s")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for negative IMPORT_RETRY_BACKOFF")
	}
}

func TestLoad_PyroscopeRequiresServerAddressWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("PYROSCOPE_ENABLED", "true")
	t.Setenv("PYROSCOPE_SERVER_ADDRESS", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when PYROSCOPE_ENABLED=true without PYROSCOPE_SERVER_ADDRESS")
	}
}

func TestLoad_PyroscopeAppNameDefaultsToServiceName(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("APP_SERVICE_NAME", "league-import-test")
	t.Setenv("PYROSCOPE_ENABLED", "true")
	t.Setenv("PYROSCOPE_SERVER_ADDRESS", "http://localhost:4040")
	t.Setenv("PYROSCOPE_APP_NAME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PyroscopeAppName != "league-import-test" {
		t.Fatalf("unexpected pyroscope app name: %q", cfg.PyroscopeAppName)
	}
}
