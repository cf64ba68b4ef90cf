package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("MINI_LEAGUE_IDS", "314")
}

func TestLoad_AppEnvValidation(t *testing.T) {
	t.Setenv("APP_ENV", "invalid")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid APP_ENV")
	}
}

func TestLoad_MiniLeagueIDsRequired(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("MINI_LEAGUE_IDS", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when MINI_LEAGUE_IDS is empty")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.MaxRequestsPerMinute != 80 {
		t.Fatalf("unexpected default request budget: %d", cfg.MaxRequestsPerMinute)
	}
	if cfg.BootstrapCacheTTL != 300*time.Second {
		t.Fatalf("unexpected default bootstrap ttl: %s", cfg.BootstrapCacheTTL)
	}
	if cfg.FastIntervalLive != 10*time.Second {
		t.Fatalf("unexpected default fast live interval: %s", cfg.FastIntervalLive)
	}
	if cfg.FastIntervalDeadline != 15*time.Second {
		t.Fatalf("unexpected default fast deadline interval: %s", cfg.FastIntervalDeadline)
	}
	if cfg.DeadlineLag != 40*time.Minute {
		t.Fatalf("unexpected default deadline lag: %s", cfg.DeadlineLag)
	}
	if cfg.PriceChangeTime != "17:30" {
		t.Fatalf("unexpected default price change time: %q", cfg.PriceChangeTime)
	}
	if cfg.PriceLocation == nil || cfg.PriceLocation.String() != "UTC" {
		t.Fatalf("unexpected default price timezone: %v", cfg.PriceLocation)
	}
	if cfg.RankMonitorAfter != 8*time.Hour {
		t.Fatalf("unexpected default rank monitor window: %s", cfg.RankMonitorAfter)
	}
}

func TestLoad_IDListParsing(t *testing.T) {
	setRequiredEnv(t)

	t.Run("trims and splits", func(t *testing.T) {
		t.Setenv("REQUIRED_MANAGER_IDS", " 1178124, 2, 91 ")
		cfg, err := Load()
		if err != nil {
			t.Fatalf("load config: %v", err)
		}
		want := []int{1178124, 2, 91}
		if len(cfg.RequiredManagerIDs) != len(want) {
			t.Fatalf("unexpected ids: %+v", cfg.RequiredManagerIDs)
		}
		for i, id := range want {
			if cfg.RequiredManagerIDs[i] != id {
				t.Fatalf("unexpected ids: %+v", cfg.RequiredManagerIDs)
			}
		}
	})

	t.Run("rejects non-numeric", func(t *testing.T) {
		t.Setenv("MINI_LEAGUE_IDS", "314,abc")
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for non-numeric league id")
		}
	})
}

func TestLoad_SecondAndMinuteUnits(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MAX_IDLE_SLEEP_SECONDS", "90")
	t.Setenv("KICKOFF_WINDOW_MINUTES", "3")
	t.Setenv("POST_DEADLINE_SETTLE_SECONDS", "45")
	t.Setenv("PRICE_WINDOW_COOLDOWN_MINUTES", "12")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.MaxIdleSleep != 90*time.Second {
		t.Fatalf("unexpected idle sleep: %s", cfg.MaxIdleSleep)
	}
	if cfg.KickoffWindow != 3*time.Minute {
		t.Fatalf("unexpected kickoff window: %s", cfg.KickoffWindow)
	}
	if cfg.PostDeadlineSettle != 45*time.Second {
		t.Fatalf("unexpected settle: %s", cfg.PostDeadlineSettle)
	}
	if cfg.PriceCooldown != 12*time.Minute {
		t.Fatalf("unexpected price cooldown: %s", cfg.PriceCooldown)
	}
}

func TestLoad_PriceChangeTimeParsing(t *testing.T) {
	setRequiredEnv(t)

	t.Run("invalid clock", func(t *testing.T) {
		t.Setenv("PRICE_CHANGE_TIME", "25:99")
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for invalid PRICE_CHANGE_TIME")
		}
	})

	t.Run("named timezone", func(t *testing.T) {
		t.Setenv("PRICE_CHANGE_TIME", "01:30")
		t.Setenv("PRICE_CHANGE_TIMEZONE", "Asia/Jakarta")
		cfg, err := Load()
		if err != nil {
			t.Fatalf("load config: %v", err)
		}
		if cfg.PriceLocation.String() != "Asia/Jakarta" {
			t.Fatalf("unexpected price timezone: %v", cfg.PriceLocation)
		}
	})

	t.Run("unknown timezone", func(t *testing.T) {
		t.Setenv("PRICE_CHANGE_TIMEZONE", "Mars/Olympus")
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for unknown PRICE_CHANGE_TIMEZONE")
		}
	})
}

func TestLoad_ValidatorRejectsNonPositiveIntervals(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FAST_LOOP_INTERVAL_LIVE", "0s")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for zero fast loop interval")
	}
}

func TestLoad_UptraceRequiresDSNWhenEnabled(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when UPTRACE_ENABLED=true without UPTRACE_DSN")
	}
}

func TestLoad_PprofDefaultsAddrWhenEnabled(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PPROF_ENABLED", "true")
	t.Setenv("PPROF_ADDR", "  ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PprofAddr != ":6060" {
		t.Fatalf("expected default pprof addr :6060, got %q", cfg.PprofAddr)
	}
}

func TestLoad_PyroscopeRequiresServerAddressWhenEnabled(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PYROSCOPE_ENABLED", "true")
	t.Setenv("PYROSCOPE_SERVER_ADDRESS", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when PYROSCOPE_ENABLED=true without PYROSCOPE_SERVER_ADDRESS")
	}
}

func TestLoad_DBDisablePreparedBinaryResultParsing(t *testing.T) {
	setRequiredEnv(t)

	t.Run("default true", func(t *testing.T) {
		t.Setenv("DB_DISABLE_PREPARED_BINARY_RESULT", "")
		cfg, err := Load()
		if err != nil {
			t.Fatalf("load config: %v", err)
		}
		if !cfg.DBDisablePreparedBinary {
			t.Fatalf("expected DBDisablePreparedBinary=true by default")
		}
	})

	t.Run("invalid value", func(t *testing.T) {
		t.Setenv("DB_DISABLE_PREPARED_BINARY_RESULT", "not-bool")
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for invalid DB_DISABLE_PREPARED_BINARY_RESULT")
		}
	})
}
