package contract

import "pifp_protocol/sdk"

// persistent key prefixes
const (
	kRole           byte = 0x01
	kProjectConfig  byte = 0x02
	kProjectState   byte = 0x03
	kProjectBalance byte = 0x04
)

// instance keys
const (
	// ProjectsCount holds the next project id as a decimal string.
	ProjectsCount = "count:proj"
	keyPaused     = "paused"
)

// keySuperAdmin is persistent, it lives as long as the role records it points at.
const keySuperAdmin = "super_admin"

// packU64LEInline sprinkles a uint64 into dst in little-endian order so our keys stay compact.
func packU64LEInline(x uint64, dst []byte) {
	dst[0] = byte(x)
	dst[1] = byte(x >> 8)
	dst[2] = byte(x >> 16)
	dst[3] = byte(x >> 24)
	dst[4] = byte(x >> 32)
	dst[5] = byte(x >> 40)
	dst[6] = byte(x >> 48)
	dst[7] = byte(x >> 56)
}

// packU64LE appends the encoded number to dst and returns the new slice.
func packU64LE(x uint64, dst []byte) []byte {
	return append(dst,
		byte(x),
		byte(x>>8),
		byte(x>>16),
		byte(x>>24),
		byte(x>>32),
		byte(x>>40),
		byte(x>>48),
		byte(x>>56),
	)
}

// roleKey is prefix|address, one record per address since roles are exclusive.
func roleKey(addr sdk.Address) string {
	a := addr.Normalize().String()
	buf := make([]byte, 0, 1+len(a))
	buf = append(buf, kRole)
	buf = append(buf, a...)
	return string(buf)
}

// projectConfigKey uses prefix 0x02 so configs sit next to state but not collide.
func projectConfigKey(id uint64) string {
	var buf [9]byte
	buf[0] = kProjectConfig
	packU64LEInline(id, buf[1:])
	return string(buf[:])
}

// projectStateKey sits in prefix 0x03, the hot record of a project.
func projectStateKey(id uint64) string {
	var buf [9]byte
	buf[0] = kProjectState
	packU64LEInline(id, buf[1:])
	return string(buf[:])
}

// projectBalanceKey stores a single token balance of a project.
// Key format: kProjectBalance|projectID|token
func projectBalanceKey(projectID uint64, token sdk.Address) string {
	t := token.Normalize().String()
	buf := make([]byte, 0, 1+8+len(t))
	buf = append(buf, kProjectBalance)
	buf = packU64LE(projectID, buf)
	buf = append(buf, t...)
	return string(buf)
}
