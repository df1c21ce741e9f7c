package game

import (
	"math"
	"testing"
)

func TestHashAndMapToMultiplier(t *testing.T) {
	tests := []struct {
		name       string
		serverSeed string
		clientSeed string
		nonce      int64
	}{
		{
			name:       "Basic test",
			serverSeed: "test_server_seed_123",
			clientSeed: "test_client_seed_456",
			nonce:      1,
		},
		{
			name:       "Different nonce",
			serverSeed: "test_server_seed_123",
			clientSeed: "test_client_seed_456",
			nonce:      2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HashAndMapToMultiplier(tt.serverSeed, tt.clientSeed, tt.nonce, HOUSE_EDGE)

			if got < MIN_CRASH_POINT {
				t.Errorf("HashAndMapToMultiplier() = %v, want >= %v", got, MIN_CRASH_POINT)
			}
			if got > MAX_MULTIPLIER {
				t.Errorf("HashAndMapToMultiplier() = %v, want <= %v", got, MAX_MULTIPLIER)
			}
			if got != floor2(got) {
				t.Errorf("HashAndMapToMultiplier() = %v, want two decimals", got)
			}
		})
	}
}

func TestHashAndMapToMultiplier_Deterministic(t *testing.T) {
	serverSeed := "deterministic_test_seed"
	clientSeed := "deterministic_client_seed"
	var nonce int64 = 42

	result1 := HashAndMapToMultiplier(serverSeed, clientSeed, nonce, HOUSE_EDGE)
	result2 := HashAndMapToMultiplier(serverSeed, clientSeed, nonce, HOUSE_EDGE)
	result3 := HashAndMapToMultiplier(serverSeed, clientSeed, nonce, HOUSE_EDGE)

	if result1 != result2 || result2 != result3 {
		t.Errorf("HashAndMapToMultiplier() is not deterministic: got %v, %v, %v", result1, result2, result3)
	}
}

func TestRoundFloat_Range(t *testing.T) {
	seed := "range_seed"
	seen := make(map[float64]bool)
	for nonce := int64(0); nonce < 500; nonce++ {
		r := RoundFloat(seed, "client", nonce)
		if r < 0 || r >= 1 {
			t.Fatalf("RoundFloat(nonce=%d) = %v, want [0, 1)", nonce, r)
		}
		seen[r] = true
	}
	if len(seen) < 490 {
		t.Errorf("RoundFloat produced %d distinct values out of 500", len(seen))
	}
}

func TestCrashPointFromFloat(t *testing.T) {
	tests := []struct {
		name string
		r    float64
		want float64
	}{
		{"zero clamps to minimum", 0, MIN_CRASH_POINT},
		{"half", 0.5, 1.94},
		{"ninety percent", 0.9, 9.7},
		{"ninety nine percent", 0.99, 97},
		{"negative treated as zero", -1, MIN_CRASH_POINT},
		{"one is capped", 1, MAX_MULTIPLIER},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CrashPointFromFloat(tt.r, HOUSE_EDGE)
			if math.Abs(got-tt.want) > 0.011 {
				t.Errorf("CrashPointFromFloat(%v) = %v, want %v", tt.r, got, tt.want)
			}
		})
	}
}

func TestCrashPointFromFloat_Distribution(t *testing.T) {
	const n = 10000
	below2 := 0
	prev := 0.0
	for i := 0; i < n; i++ {
		cp := CrashPointFromFloat(float64(i)/n, HOUSE_EDGE)
		if cp < MIN_CRASH_POINT {
			t.Fatalf("crash point %v below minimum at i=%d", cp, i)
		}
		if cp < prev {
			t.Fatalf("crash point decreased at i=%d: %v < %v", i, cp, prev)
		}
		prev = cp
		if cp < 2 {
			below2++
		}
	}
	if below2 <= n/2 {
		t.Errorf("%d of %d crash points below 2.0, want a majority", below2, n)
	}
}

func TestGenerateSeed(t *testing.T) {
	seed1 := GenerateSeed()
	seed2 := GenerateSeed()

	if len(seed1) != 64 {
		t.Errorf("GenerateSeed() length = %v, want 64", len(seed1))
	}
	if seed1 == seed2 {
		t.Error("GenerateSeed() returned the same seed twice")
	}
}

func TestHashCommitment(t *testing.T) {
	seed := "test_seed_for_commitment"

	hash1 := HashCommitment(seed)
	hash2 := HashCommitment(seed)

	if hash1 != hash2 {
		t.Error("HashCommitment() is not deterministic")
	}
	if len(hash1) != 64 {
		t.Errorf("HashCommitment() length = %v, want 64", len(hash1))
	}
	if hash1 == HashCommitment(seed+"x") {
		t.Error("HashCommitment() collides for different seeds")
	}
}

func TestVerifyRound(t *testing.T) {
	serverSeed := "verify_seed"
	commitment := HashCommitment(serverSeed)
	clientSeed := "game-1"
	var nonce int64 = 7
	crash := HashAndMapToMultiplier(serverSeed, clientSeed, nonce, HOUSE_EDGE)

	tests := []struct {
		name       string
		seed       string
		commitment string
		claimed    float64
		want       bool
	}{
		{"valid round", serverSeed, commitment, crash, true},
		{"no commitment", serverSeed, "", crash, true},
		{"wrong crash point", serverSeed, commitment, crash + 0.5, false},
		{"seed does not match commitment", "other_seed", commitment, crash, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VerifyRound(tt.seed, tt.commitment, clientSeed, nonce, HOUSE_EDGE, tt.claimed)
			if got != tt.want {
				t.Errorf("VerifyRound() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHashAndMapToMultiplier_HouseEdge(t *testing.T) {
	// A bigger edge can only lower the crash point for the same roll.
	for nonce := int64(0); nonce < 200; nonce++ {
		low := HashAndMapToMultiplier("edge_seed", "client", nonce, 0.01)
		high := HashAndMapToMultiplier("edge_seed", "client", nonce, 0.10)
		if high > low {
			t.Fatalf("nonce %d: edge 10%% gave %v > edge 1%% %v", nonce, high, low)
		}
	}
}

func BenchmarkHashAndMapToMultiplier(b *testing.B) {
	for i := 0; i < b.N; i++ {
		HashAndMapToMultiplier("bench_server_seed", "bench_client_seed", int64(i), HOUSE_EDGE)
	}
}

func BenchmarkGenerateSeed(b *testing.B) {
	for i := 0; i < b.N; i++ {
		GenerateSeed()
	}
}

func BenchmarkHashCommitment(b *testing.B) {
	seed := "benchmark_seed"
	for i := 0; i < b.N; i++ {
		HashCommitment(seed)
	}
}
