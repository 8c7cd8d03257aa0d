package dpst

// RegisterIO reads and writes device registers by address. Implementations
// are not required to be goroutine-safe; the controller serializes access
// under its command lock.
type RegisterIO interface {
	Read32(addr uint32) (uint32, error)
	Write32(addr uint32, val uint32) error
}

// updateRegister performs a read-modify-write: clear bits, then set bits.
func updateRegister(io RegisterIO, addr, set, clear uint32) error {
	v, err := io.Read32(addr)
	if err != nil {
		return err
	}
	return io.Write32(addr, (v&^clear)|set)
}
