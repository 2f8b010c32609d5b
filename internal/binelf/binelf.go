// Package binelf inspects ELF shared objects and executables to recover two
// facts the profiler's call graph does not carry: a function's compiled code
// size and whether it is reached only through a virtual table. It mirrors
// the two extraction strategies of the original analyzer: a relocation sweep
// for shared libraries (.dynsym + .rel.dyn/.rela.dyn) and a rodata vtable
// walk for statically-linked executables (.symtab + .rodata).
package binelf

import (
	"context"
	"debug/elf"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
)

// Logger receives non-fatal diagnostics (missing sections, inconsistent
// symbol sizes). An Inspector built without WithLogger discards everything.
type Logger interface {
	Warnf(format string, args ...interface{})
}

type discardLogger struct{}

func (discardLogger) Warnf(string, ...interface{}) {}

// DiscardLogger is a Logger that drops every message, for callers elsewhere
// in the module (e.g. Enrich) that want the same
// "no logger configured" default the Inspector uses internally.
var DiscardLogger Logger = discardLogger{}

// Option configures an Inspector.
type Option func(*Inspector)

// WithLogger routes diagnostics to l instead of discarding them.
func WithLogger(l Logger) Option {
	return func(ins *Inspector) { ins.logger = l }
}

// WithDemangled records the demangled flag on the Inspector. No demangler is
// wired, so the flag changes nothing the Inspector does: it stores and looks
// up whatever (mangled) name the symbol table gives it.
func WithDemangled(b bool) Option {
	return func(ins *Inspector) { ins.demangled = b }
}

// Inspector answers SizeOf/IsVirtual queries against ELF files, parsing each
// file at most once and caching the result.
type Inspector struct {
	demangled bool
	logger    Logger

	parsed   map[string]bool
	sizes    map[string]uint64
	virtuals map[string]struct{}
}

// NewInspector returns a ready Inspector.
func NewInspector(opts ...Option) *Inspector {
	ins := &Inspector{
		logger:   discardLogger{},
		parsed:   make(map[string]bool),
		sizes:    make(map[string]uint64),
		virtuals: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(ins)
	}
	return ins
}

func indexKey(file, function string) string {
	return file + "##" + function
}

// SizeOf returns the compiled size in bytes of function within file, or 0 if
// the file could not be parsed or the symbol carries no size information.
func (ins *Inspector) SizeOf(file, function string) uint64 {
	ins.ensureParsed(file)
	return ins.sizes[indexKey(file, function)]
}

// VirtualFunctions returns every "<file>##<symbol>" key recorded as virtual
// across every file parsed so far. The Inspector only knows about files it
// has been asked about, so callers should invoke this after every function
// of interest has already been looked up once via SizeOf/IsVirtual (e.g.
// after attribute enrichment has walked the whole call graph).
func (ins *Inspector) VirtualFunctions() []string {
	out := make([]string, 0, len(ins.virtuals))
	for k := range ins.virtuals {
		out = append(out, k)
	}
	return out
}

// IsVirtual reports whether function within file is reachable through a
// virtual table, as observed in the binary's relocations or rodata.
func (ins *Inspector) IsVirtual(file, function string) bool {
	ins.ensureParsed(file)
	_, ok := ins.virtuals[indexKey(file, function)]
	return ok
}

func (ins *Inspector) ensureParsed(file string) {
	if ins.parsed[file] {
		return
	}
	ins.parsed[file] = true

	if strings.TrimSpace(file) == "" {
		return
	}

	result, err := parseFile(file)
	if err != nil {
		ins.logger.Warnf("binelf: parse %s: %v", file, err)
		return
	}
	ins.merge(result)
}

// Prewarm parses every distinct file in files ahead of time, using a bounded
// worker pool, so that the later serial enrichment walk finds every ELF
// already cached and never blocks on disk I/O one file at a time. It is
// equivalent to PrewarmContext(context.Background(), files).
func (ins *Inspector) Prewarm(files []string) {
	ins.PrewarmContext(context.Background(), files)
}

// PrewarmContext is Prewarm with caller-initiated cancellation. Cancellation
// is only observed between files, never mid-file: once a worker starts
// parsing one ELF it runs to completion. Already-parsed and empty paths are
// skipped. Parsing itself touches no Inspector state and is safe to run
// concurrently; only the final merge back into the Inspector's maps is
// serialized, one result at a time, so the parallel phase never races on
// Inspector state.
func (ins *Inspector) PrewarmContext(ctx context.Context, files []string) {
	var pending []string
	seen := map[string]bool{}
	for _, file := range files {
		if strings.TrimSpace(file) == "" || ins.parsed[file] || seen[file] {
			continue
		}
		seen[file] = true
		pending = append(pending, file)
	}
	if len(pending) == 0 {
		return
	}

	workers := runtime.NumCPU()
	if workers > len(pending) {
		workers = len(pending)
	}
	if workers < 1 {
		workers = 1
	}

	workCh := make(chan string, len(pending))
	for _, file := range pending {
		workCh <- file
	}
	close(workCh)

	type parsed struct {
		file   string
		result parseResult
		err    error
	}
	resultCh := make(chan parsed, len(pending))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range workCh {
				select {
				case <-ctx.Done():
					return
				default:
				}
				result, err := parseFile(file)
				resultCh <- parsed{file: file, result: result, err: err}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for p := range resultCh {
		ins.parsed[p.file] = true
		if p.err != nil {
			ins.logger.Warnf("binelf: parse %s: %v", p.file, p.err)
			continue
		}
		ins.merge(p.result)
	}
}

// parseResult is the output of parsing one ELF file, isolated from Inspector
// state so it can be produced safely from any goroutine.
type parseResult struct {
	sizes    map[string]uint64
	virtuals map[string]struct{}
}

func (ins *Inspector) merge(r parseResult) {
	for k, v := range r.sizes {
		if existing, ok := ins.sizes[k]; ok && existing != v {
			ins.logger.Warnf("binelf: function %s already sized %d, new size %d", k, existing, v)
			continue
		}
		ins.sizes[k] = v
	}
	for k := range r.virtuals {
		ins.virtuals[k] = struct{}{}
	}
}

func parseFile(file string) (parseResult, error) {
	result := parseResult{sizes: map[string]uint64{}, virtuals: map[string]struct{}{}}

	f, err := elf.Open(file)
	if err != nil {
		return result, err
	}
	defer f.Close()

	switch f.Type {
	case elf.ET_EXEC:
		return parseExecutable(file, f, result)
	case elf.ET_DYN:
		return parseLibrary(file, f, result)
	default:
		return result, fmt.Errorf("unrecognized ELF type %v", f.Type)
	}
}

// vtable is a candidate C++ virtual table: a weakly-bound symbol whose name
// contains the Itanium ABI "_ZTV" marker.
type vtable struct {
	address uint64
	size    uint64
}

// relocation is a (address, symbol index) pair extracted from a .rel.dyn or
// .rela.dyn section.
type relocation struct {
	address uint64
	symbol  uint32
}

// parseLibrary recovers virtual functions for a shared object by sweeping
// its dynamic relocations against the address ranges of its virtual tables:
// a relocation that writes into a vtable's address range is a pointer to a
// virtual function, and the relocation's symbol names it.
func parseLibrary(file string, f *elf.File, result parseResult) (parseResult, error) {
	names, vtables, _, err := extractSymbols(file, f, ".dynsym", result.sizes)
	if err != nil {
		return result, err
	}
	if len(vtables) == 0 {
		return result, nil
	}

	relSection := ".rel.dyn"
	if f.Class == elf.ELFCLASS64 {
		relSection = ".rela.dyn"
	}
	relocations, err := parseRelocationTable(f, relSection)
	if err != nil {
		return result, err
	}

	sort.Slice(vtables, func(i, j int) bool { return vtables[i].address < vtables[j].address })
	sort.Slice(relocations, func(i, j int) bool { return relocations[i].address < relocations[j].address })

	vi := 0
	for _, r := range relocations {
		for vi < len(vtables) && r.address >= vtables[vi].address+vtables[vi].size {
			vi++
		}
		if vi == len(vtables) {
			break
		}

		if r.address >= vtables[vi].address && r.address < vtables[vi].address+vtables[vi].size {
			if int(r.symbol) < len(names) {
				result.virtuals[indexKey(file, names[r.symbol])] = struct{}{}
			}
		}
	}

	return result, nil
}

// parseExecutable recovers virtual functions for a statically-linked
// executable by walking .rodata line by line (16 bytes at a time) over the
// address range of each virtual table and checking whether each slot holds
// the address of a known function.
func parseExecutable(file string, f *elf.File, result parseResult) (parseResult, error) {
	names, vtables, functionsByAddress, err := extractSymbols(file, f, ".symtab", result.sizes)
	if err != nil {
		return result, err
	}
	if len(vtables) == 0 {
		return result, nil
	}
	sort.Slice(vtables, func(i, j int) bool { return vtables[i].address < vtables[j].address })

	rodata := f.Section(".rodata")
	if rodata == nil {
		return result, nil
	}
	data, err := rodata.Data()
	if err != nil || len(data) == 0 {
		return result, nil
	}

	text := f.Section(".text")
	if text == nil {
		return result, nil
	}

	// Virtual base of the rodata section: rebase the entry point's virtual
	// address into a file-offset-relative space, then shift to .rodata.
	base := f.Entry - text.Offset + rodata.Offset

	is64 := f.Class == elf.ELFCLASS64
	var slotWidth uint64 = 4
	if is64 {
		slotWidth = 8
	}
	const bytesPerLine = 16
	slotsPerLine := bytesPerLine / int(slotWidth)

	vi := 0
	address := base
	for i := 0; i < len(data); address += bytesPerLine {
		if vi < len(vtables) && address > vtables[vi].address+vtables[vi].size {
			vi++
			if vi == len(vtables) {
				break
			}
			// A vtable can start in the middle of a line: re-examine it
			// against the next table.
			if i >= bytesPerLine {
				i -= bytesPerLine
			} else {
				i = 0
			}
			if address >= bytesPerLine {
				address -= bytesPerLine
			} else {
				address = 0
			}
		}

		if vi < len(vtables) && address >= vtables[vi].address && address <= vtables[vi].address+vtables[vi].size {
			for a := 0; a < slotsPerLine && i < len(data); a++ {
				var fn uint64
				if is64 {
					fn = parse8(data, i)
				} else {
					fn = parse4(data, i)
				}
				if fn > 0 {
					if idx, ok := functionsByAddress[fn]; ok {
						result.virtuals[indexKey(file, names[idx])] = struct{}{}
					}
				}
				i += int(slotWidth)
			}
		} else {
			i += bytesPerLine
		}
	}

	return result, nil
}

// extractSymbols decodes every entry of the named symbol table section,
// recording function sizes (for size > 0 entries) into sizes and returning
// the symbol names in table order, every candidate virtual table found, and
// a map from function address to symbol index (used by the executable
// rodata walk).
func extractSymbols(file string, f *elf.File, sectionName string, sizes map[string]uint64) ([]string, []vtable, map[uint64]int, error) {
	sec := f.Section(sectionName)
	if sec == nil {
		return nil, nil, nil, fmt.Errorf("missing section %s", sectionName)
	}
	data, err := sec.Data()
	if err != nil {
		return nil, nil, nil, err
	}

	if int(sec.Link) >= len(f.Sections) {
		return nil, nil, nil, fmt.Errorf("section %s: invalid string table link", sectionName)
	}
	strData, err := f.Sections[sec.Link].Data()
	if err != nil {
		return nil, nil, nil, err
	}

	is64 := f.Class == elf.ELFCLASS64
	entsize := 16
	if is64 {
		entsize = 24
	}
	if entsize == 0 || len(data)%entsize != 0 {
		return nil, nil, nil, fmt.Errorf("section %s: malformed symbol table", sectionName)
	}
	count := len(data) / entsize

	bo := f.ByteOrder
	names := make([]string, count)
	functionsByAddress := make(map[uint64]int)
	var vtables []vtable

	for i := 0; i < count; i++ {
		off := i * entsize

		var nameOff uint32
		var info byte
		var value, size uint64

		if is64 {
			nameOff = bo.Uint32(data[off:])
			info = data[off+4]
			value = bo.Uint64(data[off+8:])
			size = bo.Uint64(data[off+16:])
		} else {
			nameOff = bo.Uint32(data[off:])
			value = uint64(bo.Uint32(data[off+4:]))
			size = uint64(bo.Uint32(data[off+8:]))
			info = data[off+12]
		}

		name := cString(strData, nameOff)
		storeName := name
		symType := elf.ST_TYPE(info)
		symBind := elf.ST_BIND(info)

		names[i] = storeName

		switch {
		case symType == elf.STT_FUNC:
			functionsByAddress[value] = i

			if size > 0 {
				idx := indexKey(file, storeName)
				sizes[idx] = size

				if at := strings.Index(storeName, "@@"); at >= 0 {
					sizes[indexKey(file, storeName[:at])] = size
				}
			}
		case symBind == elf.STB_WEAK && strings.Contains(name, "_ZTV"):
			vtables = append(vtables, vtable{address: value, size: size})
		}
	}

	return names, vtables, functionsByAddress, nil
}

// parseRelocationTable decodes every entry of a .rel.dyn (32-bit, Elf32_Rel)
// or .rela.dyn (64-bit, Elf64_Rela) section, discarding entries whose symbol
// index is 0 (no associated symbol).
func parseRelocationTable(f *elf.File, sectionName string) ([]relocation, error) {
	sec := f.Section(sectionName)
	if sec == nil {
		return nil, nil
	}
	data, err := sec.Data()
	if err != nil {
		return nil, err
	}

	bo := f.ByteOrder
	var out []relocation

	if f.Class == elf.ELFCLASS64 {
		const entsize = 24 // r_offset(8) + r_info(8) + r_addend(8)
		for i := 0; i+entsize <= len(data); i += entsize {
			offset := bo.Uint64(data[i:])
			info := bo.Uint64(data[i+8:])
			sym := uint32(info >> 32)
			if sym > 0 {
				out = append(out, relocation{address: offset, symbol: sym})
			}
		}
	} else {
		const entsize = 8 // r_offset(4) + r_info(4)
		for i := 0; i+entsize <= len(data); i += entsize {
			offset := uint64(bo.Uint32(data[i:]))
			info := bo.Uint32(data[i+4:])
			sym := info >> 8
			if sym > 0 {
				out = append(out, relocation{address: offset, symbol: sym})
			}
		}
	}

	return out, nil
}

func cString(data []byte, offset uint32) string {
	if int(offset) >= len(data) {
		return ""
	}
	end := int(offset)
	for end < len(data) && data[end] != 0 {
		end++
	}
	return string(data[offset:end])
}

// parse4 decodes a little-endian 32-bit address out of a rodata line.
func parse4(bytes []byte, i int) uint64 {
	return uint64(bytes[i]) |
		uint64(bytes[i+1])<<8 |
		uint64(bytes[i+2])<<16 |
		uint64(bytes[i+3])<<24
}

// parse8 decodes a little-endian 64-bit address out of a rodata line.
func parse8(bytes []byte, i int) uint64 {
	return uint64(bytes[i]) |
		uint64(bytes[i+1])<<8 |
		uint64(bytes[i+2])<<16 |
		uint64(bytes[i+3])<<24 |
		uint64(bytes[i+4])<<32 |
		uint64(bytes[i+5])<<40 |
		uint64(bytes[i+6])<<48 |
		uint64(bytes[i+7])<<56
}
