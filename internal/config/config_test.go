package config

import "testing"

func TestGetEnvPortsParsesCommaList(t *testing.T) {
	t.Setenv("TWS_PORTS_TEST", "7500,7497")
	ports := getEnvPorts("TWS_PORTS_TEST", []uint16{1})
	if len(ports) != 2 || ports[0] != 7500 || ports[1] != 7497 {
		t.Fatalf("got %v", ports)
	}
}

func TestGetEnvPortsFallsBackOnEmpty(t *testing.T) {
	ports := getEnvPorts("TWS_PORTS_UNSET", []uint16{7500, 7497})
	if len(ports) != 2 || ports[0] != 7500 {
		t.Fatalf("got %v", ports)
	}
}

func TestStoreEnabledRequiresBoth(t *testing.T) {
	c := &Config{}
	if c.StoreEnabled() {
		t.Fatal("expected StoreEnabled false with no URL/key")
	}
	c.Store.URL = "https://x.supabase.co"
	if c.StoreEnabled() {
		t.Fatal("expected StoreEnabled false with only URL set")
	}
	c.Store.AnonKey = "key"
	if !c.StoreEnabled() {
		t.Fatal("expected StoreEnabled true with both set")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.TWS.Host == "" {
		t.Fatal("expected default TWS host")
	}
	if len(cfg.TWS.Ports) == 0 {
		t.Fatal("expected default TWS ports")
	}
}
