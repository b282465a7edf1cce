package enums

import "testing"

func TestParseSessionContext(t *testing.T) {
	t.Parallel()

	got, err := ParseSessionContext("authenticated")
	if err != nil || got != SessionContextAuthenticated {
		t.Fatalf("expected authenticated, got %q err=%v", got, err)
	}
	if _, err := ParseSessionContext("admin"); err == nil {
		t.Fatal("expected unknown context to fail")
	}
	if SessionContext("").IsValid() {
		t.Fatal("empty context should be invalid")
	}
}

func TestParseSyncPhase(t *testing.T) {
	t.Parallel()

	for _, phase := range []SyncPhase{SyncPhaseIdle, SyncPhaseLoading, SyncPhaseMerging, SyncPhaseError} {
		got, err := ParseSyncPhase(phase.String())
		if err != nil || got != phase {
			t.Fatalf("round trip failed for %q: got %q err=%v", phase, got, err)
		}
	}
	if _, err := ParseSyncPhase("stuck"); err == nil {
		t.Fatal("expected unknown phase to fail")
	}
}

func TestParseStoreBackend(t *testing.T) {
	t.Parallel()

	got, err := ParseStoreBackend("redis")
	if err != nil || got != StoreBackendRedis {
		t.Fatalf("expected redis backend, got %q err=%v", got, err)
	}
	if _, err := ParseStoreBackend("REDIS"); err == nil {
		t.Fatal("parsing is case sensitive; callers normalize first")
	}
}
