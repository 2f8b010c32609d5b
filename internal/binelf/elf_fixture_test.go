package binelf

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// fixtureSection describes one non-null, non-shstrtab section of a
// synthetic ELF file built by buildELF.
type fixtureSection struct {
	name     string
	shType   elf.SectionType
	data     []byte
	linkName string // resolved to the section index of the named section, or 0
	entsize  uint64
}

// buildStrtab concatenates names into a string-table blob (leading NUL,
// each entry NUL-terminated) and returns each name's byte offset.
func buildStrtab(names []string) ([]byte, []uint32) {
	var buf bytes.Buffer
	buf.WriteByte(0)
	offsets := make([]uint32, len(names))
	for i, n := range names {
		offsets[i] = uint32(buf.Len())
		buf.WriteString(n)
		buf.WriteByte(0)
	}
	return buf.Bytes(), offsets
}

// buildELF assembles a minimal, byte-exact ELF32 or ELF64 file (header,
// section data, then section header table) good enough for debug/elf to
// open and for this package's hand-rolled symbol/relocation/rodata parsers
// to walk. Only what those parsers read is populated: no program headers,
// no dynamic section, no real code.
func buildELF(t *testing.T, class32 bool, etype elf.Type, entry uint64, secs []fixtureSection) string {
	t.Helper()

	names := make([]string, 0, len(secs)+2)
	names = append(names, "")
	for _, s := range secs {
		names = append(names, s.name)
	}
	names = append(names, ".shstrtab")
	shstrtabIndex := uint16(len(names) - 1)

	shstrtabData, nameOffsets := buildStrtab(names)

	indexOf := make(map[string]uint32, len(secs))
	for i, s := range secs {
		indexOf[s.name] = uint32(i + 1) // +1 for the leading NULL section
	}

	ehsize, shentsize := 52, 40
	if !class32 {
		ehsize, shentsize = 64, 64
	}

	offset := uint64(ehsize)
	dataOffsets := make([]uint64, len(secs))
	for i, s := range secs {
		dataOffsets[i] = offset
		offset += uint64(len(s.data))
	}
	shstrtabOffset := offset
	offset += uint64(len(shstrtabData))
	shoff := offset

	var buf bytes.Buffer
	writeELFHeader(&buf, class32, etype, entry, shoff, uint16(shentsize), uint16(len(names)), shstrtabIndex)

	for _, s := range secs {
		buf.Write(s.data)
	}
	buf.Write(shstrtabData)

	writeShdr(&buf, class32, shdr{}) // NULL section
	for i, s := range secs {
		var link uint32
		if s.linkName != "" {
			link = indexOf[s.linkName]
		}
		writeShdr(&buf, class32, shdr{
			name:    nameOffsets[i+1],
			typ:     uint32(s.shType),
			offset:  dataOffsets[i],
			size:    uint64(len(s.data)),
			link:    link,
			entsize: s.entsize,
		})
	}
	writeShdr(&buf, class32, shdr{
		name:   nameOffsets[shstrtabIndex],
		typ:    uint32(elf.SHT_STRTAB),
		offset: shstrtabOffset,
		size:   uint64(len(shstrtabData)),
	})

	path := filepath.Join(t.TempDir(), "fixture.elf")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func writeELFHeader(buf *bytes.Buffer, class32 bool, etype elf.Type, entry, shoff uint64, shentsize, shnum, shstrndx uint16) {
	ident := make([]byte, 16)
	ident[0], ident[1], ident[2], ident[3] = 0x7f, 'E', 'L', 'F'
	if class32 {
		ident[4] = byte(elf.ELFCLASS32)
	} else {
		ident[4] = byte(elf.ELFCLASS64)
	}
	ident[5] = byte(elf.ELFDATA2LSB)
	ident[6] = byte(elf.EV_CURRENT)
	buf.Write(ident)

	binary.Write(buf, binary.LittleEndian, uint16(etype))
	binary.Write(buf, binary.LittleEndian, uint16(elf.EM_X86_64))
	binary.Write(buf, binary.LittleEndian, uint32(elf.EV_CURRENT))

	if class32 {
		binary.Write(buf, binary.LittleEndian, uint32(entry))
		binary.Write(buf, binary.LittleEndian, uint32(0)) // e_phoff
		binary.Write(buf, binary.LittleEndian, uint32(shoff))
	} else {
		binary.Write(buf, binary.LittleEndian, entry)
		binary.Write(buf, binary.LittleEndian, uint64(0)) // e_phoff
		binary.Write(buf, binary.LittleEndian, shoff)
	}

	binary.Write(buf, binary.LittleEndian, uint32(0)) // e_flags

	ehsize := uint16(52)
	if !class32 {
		ehsize = 64
	}
	binary.Write(buf, binary.LittleEndian, ehsize)
	binary.Write(buf, binary.LittleEndian, uint16(0)) // e_phentsize
	binary.Write(buf, binary.LittleEndian, uint16(0)) // e_phnum
	binary.Write(buf, binary.LittleEndian, shentsize)
	binary.Write(buf, binary.LittleEndian, shnum)
	binary.Write(buf, binary.LittleEndian, shstrndx)
}

// shdr holds the fields of a section header this fixture builder cares
// about; sh_flags and sh_info are always zero, sh_addr is always zero
// (the parsers under test key off sh_offset, not virtual address), and
// sh_addralign is fixed at 1.
type shdr struct {
	name    uint32
	typ     uint32
	offset  uint64
	size    uint64
	link    uint32
	entsize uint64
}

func writeShdr(buf *bytes.Buffer, class32 bool, s shdr) {
	if class32 {
		binary.Write(buf, binary.LittleEndian, s.name)
		binary.Write(buf, binary.LittleEndian, s.typ)
		binary.Write(buf, binary.LittleEndian, uint32(0)) // sh_flags
		binary.Write(buf, binary.LittleEndian, uint32(0)) // sh_addr
		binary.Write(buf, binary.LittleEndian, uint32(s.offset))
		binary.Write(buf, binary.LittleEndian, uint32(s.size))
		binary.Write(buf, binary.LittleEndian, s.link)
		binary.Write(buf, binary.LittleEndian, uint32(0)) // sh_info
		binary.Write(buf, binary.LittleEndian, uint32(1)) // sh_addralign
		binary.Write(buf, binary.LittleEndian, uint32(s.entsize))
		return
	}
	binary.Write(buf, binary.LittleEndian, s.name)
	binary.Write(buf, binary.LittleEndian, s.typ)
	binary.Write(buf, binary.LittleEndian, uint64(0)) // sh_flags
	binary.Write(buf, binary.LittleEndian, uint64(0)) // sh_addr
	binary.Write(buf, binary.LittleEndian, s.offset)
	binary.Write(buf, binary.LittleEndian, s.size)
	binary.Write(buf, binary.LittleEndian, s.link)
	binary.Write(buf, binary.LittleEndian, uint32(0)) // sh_info
	binary.Write(buf, binary.LittleEndian, uint64(1)) // sh_addralign
	binary.Write(buf, binary.LittleEndian, s.entsize)
}

func sym32(nameOff, value, size uint32, bind, typ byte) []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint32(b[0:], nameOff)
	binary.LittleEndian.PutUint32(b[4:], value)
	binary.LittleEndian.PutUint32(b[8:], size)
	b[12] = bind<<4 | (typ & 0xf)
	return b
}

func sym64(nameOff uint32, value, size uint64, bind, typ byte) []byte {
	b := make([]byte, 24)
	binary.LittleEndian.PutUint32(b[0:], nameOff)
	b[4] = bind<<4 | (typ & 0xf)
	binary.LittleEndian.PutUint64(b[8:], value)
	binary.LittleEndian.PutUint64(b[16:], size)
	return b
}

func rel32(offset, sym, typ uint32) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:], offset)
	binary.LittleEndian.PutUint32(b[4:], sym<<8|(typ&0xff))
	return b
}

// concatBytes joins symbol/relocation entries into one section blob.
func concatBytes(chunks ...[]byte) []byte {
	var out []byte
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
