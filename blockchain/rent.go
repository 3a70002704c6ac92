package blockchain

const (
	// AccountStorageOverhead is the per-account metadata charged on top of the
	// data length.
	AccountStorageOverhead  = 128
	LamportsPerByteYear     = 3480
	ExemptionThresholdYears = 2

	LamportsPerSignature = 5000
)

func MinimumBalanceForRentExemption(space uint64) uint64 {
	return (AccountStorageOverhead + space) * LamportsPerByteYear * ExemptionThresholdYears
}
