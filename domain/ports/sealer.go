package ports

// Sealer protects data before it leaves the trusted side.
type Sealer interface {
	// Seal returns an authenticated ciphertext of plain.
	Seal(plain []byte) ([]byte, error)
	// Open authenticates and decrypts a value produced by Seal.
	Open(sealed []byte) ([]byte, error)
	// Overhead is the number of bytes Seal adds.
	Overhead() int
}
