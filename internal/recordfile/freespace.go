package recordfile

import "encoding/binary"

// The file header's free-space directory stores, for each of the first
// K pages a record file's header region can describe, a 4-byte entry:
// free_bytes (2B) + free_slot_count (2B) — spec §3/§6.
const fsEntrySize = 4

func fsCapacity(header []byte) int {
	return len(header) / fsEntrySize
}

func fsGet(header []byte, page int) (freeBytes, freeSlots uint16) {
	o := page * fsEntrySize
	return binary.LittleEndian.Uint16(header[o:]), binary.LittleEndian.Uint16(header[o+2:])
}

func fsSet(header []byte, page int, freeBytes, freeSlots uint16) {
	o := page * fsEntrySize
	binary.LittleEndian.PutUint16(header[o:], freeBytes)
	binary.LittleEndian.PutUint16(header[o+2:], freeSlots)
}
