package cmd

import "testing"

func TestRootCmd_SubcommandsRegistered(t *testing.T) {
	want := []string{"serve", "config", "hash-password", "version"}
	got := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		got[c.Name()] = true
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("expected %q to be registered with rootCmd", name)
		}
	}
}
