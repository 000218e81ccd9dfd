package cli

import "testing"

func TestRootCmdFlagDefaultsFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CONFIG_PATH", "/etc/quizit.yaml")

	cmd := newRootCmd()
	if got := cmd.PersistentFlags().Lookup("port").DefValue; got != "9090" {
		t.Fatalf("expected port from env, got %q", got)
	}
	if got := cmd.PersistentFlags().Lookup("config").DefValue; got != "/etc/quizit.yaml" {
		t.Fatalf("expected config from env, got %q", got)
	}
}

func TestRootCmdLeavesPortToConfig(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("CONFIG_PATH", "")

	cmd := newRootCmd()
	if got := cmd.PersistentFlags().Lookup("port").DefValue; got != "" {
		t.Fatalf("expected empty port default so server.port applies, got %q", got)
	}
	if got := cmd.PersistentFlags().Lookup("config").DefValue; got != "config/config.yaml" {
		t.Fatalf("unexpected config default %q", got)
	}
	for _, name := range []string{"start", "migrate"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Fatalf("expected %s subcommand, got %v err=%v", name, sub, err)
		}
	}
}
