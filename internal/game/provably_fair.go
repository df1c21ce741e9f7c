package game

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
)

const (
	MIN_MULTIPLIER   = 1.00
	MIN_CRASH_POINT  = 1.01
	MAX_MULTIPLIER   = 1000000.00
	HOUSE_EDGE       = 0.03
	hashFloatBits    = 52
	hashFloatDivisor = float64(uint64(1) << hashFloatBits)
)

// RoundFloat derives a uniform value in [0, 1) from the round seeds using
// HMAC-SHA256(serverSeed, "clientSeed:nonce").
func RoundFloat(serverSeed, clientSeed string, nonce int64) float64 {
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write([]byte(fmt.Sprintf("%s:%d", clientSeed, nonce)))
	sum := h.Sum(nil)

	v := binary.BigEndian.Uint64(sum[:8]) >> (64 - hashFloatBits)
	return float64(v) / hashFloatDivisor
}

// CrashPointFromFloat maps r in [0, 1) onto a crash multiplier with the
// exponential distribution P(crash >= x) = (1-houseEdge)/x. Low values dominate
// and the tail is long. The result is truncated to two decimals and never
// below MIN_CRASH_POINT.
func CrashPointFromFloat(r, houseEdge float64) float64 {
	if r < 0 || math.IsNaN(r) {
		r = 0
	}
	if r >= 1 {
		return MAX_MULTIPLIER
	}

	crash := floor2((1 - houseEdge) / (1 - r))

	if crash < MIN_CRASH_POINT {
		return MIN_CRASH_POINT
	}
	if crash > MAX_MULTIPLIER {
		return MAX_MULTIPLIER
	}
	return crash
}

// HashAndMapToMultiplier generates the provably fair crash point for a round.
func HashAndMapToMultiplier(serverSeed, clientSeed string, nonce int64, houseEdge float64) float64 {
	return CrashPointFromFloat(RoundFloat(serverSeed, clientSeed, nonce), houseEdge)
}

// GenerateSeed creates a cryptographically secure random seed
func GenerateSeed() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// HashCommitment creates a SHA256 hash of the seed for commitment
func HashCommitment(seed string) string {
	h := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(h[:])
}

// VerifyRound lets a player check a revealed round: the seed must match the
// published commitment and reproduce the claimed crash point.
func VerifyRound(serverSeed, commitment, clientSeed string, nonce int64, houseEdge, claimed float64) bool {
	if commitment != "" && HashCommitment(serverSeed) != commitment {
		return false
	}
	calculated := HashAndMapToMultiplier(serverSeed, clientSeed, nonce, houseEdge)
	return math.Abs(calculated-claimed) < 0.005
}
