package cmd

import (
	"testing"

	"github.com/alexedwards/argon2id"

	"github.com/wardenauth/warden/internal/adapter/outbound/memory"
)

func TestHashPasswordCmd_NoArgsRejected(t *testing.T) {
	if err := hashPasswordCmd.Args(hashPasswordCmd, nil); err == nil {
		t.Error("expected an error for zero arguments")
	}
}

func TestHashPasswordCmd_RunESucceedsAndVerifies(t *testing.T) {
	const password = "correct-horse-battery-staple"

	if err := hashPasswordCmd.RunE(hashPasswordCmd, []string{password}); err != nil {
		t.Fatalf("RunE: %v", err)
	}

	hash, err := memory.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	match, err := argon2id.ComparePasswordAndHash(password, hash)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !match {
		t.Error("hash does not verify against the original password")
	}
}
