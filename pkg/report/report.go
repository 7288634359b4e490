// Package report renders parsed PE models as text dumps, one printer per
// dump category with a fixed dispatch table.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/Velocidex/ordereddict"
	"github.com/fatih/color"

	"sgstatic/pkg/pe"
	"sgstatic/pkg/yara"
)

// Printer writes dump categories for one or more files to a single writer.
type Printer struct {
	w      io.Writer
	header *color.Color
	field  *color.Color
	warn   *color.Color
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{
		w:      w,
		header: color.New(color.FgCyan, color.Bold),
		field:  color.New(color.FgGreen),
		warn:   color.New(color.FgYellow),
	}
}

// Categories maps a dump category name to its printer, dispatch order fixed
// by categoryOrder.
var categories = map[string]func(*Printer, *pe.File){
	"dos":          (*Printer).DosHeader,
	"pe":           (*Printer).PeHeader,
	"opt":          (*Printer).OptionalHeader,
	"sections":     (*Printer).Sections,
	"imports":      (*Printer).Imports,
	"exports":      (*Printer).Exports,
	"resources":    (*Printer).Resources,
	"version":      (*Printer).Version,
	"debug":        (*Printer).Debug,
	"tls":          (*Printer).Tls,
	"certificates": (*Printer).Certificates,
	"relocations":  (*Printer).Relocations,
	"hashes":       (*Printer).Hashes,
}

var categoryOrder = []string{
	"dos", "pe", "opt", "sections", "imports", "exports", "resources",
	"version", "debug", "tls", "certificates", "relocations", "hashes",
}

// KnownCategory reports whether name is a valid dump category.
func KnownCategory(name string) bool {
	if name == "all" {
		return true
	}
	_, ok := categories[name]
	return ok
}

// Dump prints the requested categories for the file; "all" expands to every
// category in fixed order.
func (p *Printer) Dump(f *pe.File, names []string) error {
	expanded := names
	for _, name := range names {
		if name == "all" {
			expanded = categoryOrder
			break
		}
	}
	for _, name := range expanded {
		printer, ok := categories[name]
		if !ok {
			return fmt.Errorf("unknown dump category %q", name)
		}
		printer(p, f)
	}
	return nil
}

// Separator writes the 80-dash line between per-file reports.
func (p *Printer) Separator() {
	fmt.Fprintln(p.w, strings.Repeat("-", 80))
}

func (p *Printer) title(format string, args ...interface{}) {
	p.header.Fprintf(p.w, format+"\n", args...)
}

// Invalid reports a file whose headers did not parse, with any rule matches
// from the magic bundle appended.
func (p *Printer) Invalid(filename string, reason error, magic []yara.Match) {
	p.title("[%s]", filename)
	p.warn.Fprintf(p.w, "not a valid PE image: %v\n", reason)
	for _, m := range magic {
		if desc := metaString(m.Meta, "description"); desc != "" {
			fmt.Fprintf(p.w, "file type: %s\n", desc)
		}
	}
}

// Summary is the default per-file report when no dump categories are given.
func (p *Printer) Summary(f *pe.File) {
	p.title("[%s]", f.Filename)

	arch := pe.MachineTypes[f.FileHeader.Machine]
	if arch == "" {
		arch = fmt.Sprintf("0x%X", f.FileHeader.Machine)
	}
	subsystem := pe.SubsystemTypes[f.OptionalHeader.Subsystem]
	if subsystem == "" {
		subsystem = fmt.Sprintf("%d", f.OptionalHeader.Subsystem)
	}

	format := "PE32"
	if f.Is64() {
		format = "PE32+"
	}

	p.pair("Format", format)
	p.pair("Machine", arch)
	p.pair("Subsystem", subsystem)
	p.pair("ImageBase", fmt.Sprintf("0x%X", f.OptionalHeader.ImageBase))
	p.pair("EntryPoint", fmt.Sprintf("0x%X", f.OptionalHeader.AddressOfEntryPoint))
	p.pair("Sections", fmt.Sprintf("%d", len(f.Sections)))
	p.pair("Compiled", time.Unix(int64(f.FileHeader.TimeDateStamp), 0).UTC().Format(time.RFC3339))
	p.pair("Imports", fmt.Sprintf("%d modules", len(f.Imports)))
	if f.Exports != nil {
		p.pair("Exports", fmt.Sprintf("%d symbols", len(f.Exports.Entries)))
	}
	if len(f.Certificates) > 0 {
		p.pair("Signed", fmt.Sprintf("%d certificate(s)", len(f.Certificates)))
	}
	for _, w := range f.Warnings() {
		p.warn.Fprintf(p.w, "warning: %s\n", w)
	}
}

func (p *Printer) pair(name, value string) {
	p.field.Fprintf(p.w, "%-14s", name)
	fmt.Fprintf(p.w, " %s\n", value)
}

func (p *Printer) DosHeader(f *pe.File) {
	p.title("DOS Header")
	fmt.Fprint(p.w, f.DosHeader.String())
}

func (p *Printer) PeHeader(f *pe.File) {
	p.title("File Header")
	fmt.Fprint(p.w, f.FileHeader.String())
}

func (p *Printer) OptionalHeader(f *pe.File) {
	p.title("Optional Header")
	fmt.Fprint(p.w, f.OptionalHeader.String())

	p.title("Data Directories")
	for _, dir := range f.DataDirectories {
		fmt.Fprintf(p.w, "%2d  %-38s  RVA 0x%-8X  Size 0x%X\n",
			dir.Index, dir.Name, dir.VirtualAddress, dir.Size)
	}
}

func (p *Printer) Sections(f *pe.File) {
	p.title("Sections")
	fmt.Fprintf(p.w, "%-10s %-10s %-10s %-10s %-10s %-8s\n",
		"Name", "VirtAddr", "VirtSize", "RawPtr", "RawSize", "Entropy")
	for _, s := range f.Sections {
		entropy := pe.Entropy(f.SectionData(s))
		fmt.Fprintf(p.w, "%-10s 0x%-8X 0x%-8X 0x%-8X 0x%-8X %.3f\n",
			s.Name, s.VirtualAddress, s.VirtualSize,
			s.PointerToRawData, s.SizeOfRawData, entropy)
	}
}

func (p *Printer) Imports(f *pe.File) {
	p.title("Imports")
	for _, imp := range f.Imports {
		kind := ""
		if imp.Delayed {
			kind = " (delay-loaded)"
		}
		p.field.Fprintf(p.w, "%s%s\n", imp.DllName, kind)
		for _, entry := range imp.Entries {
			if entry.Kind == pe.ImportByOrdinal && entry.Name == "" {
				fmt.Fprintf(p.w, "    ord%d\n", entry.Ordinal)
			} else if entry.Kind == pe.ImportByOrdinal {
				fmt.Fprintf(p.w, "    %s (ord%d)\n", entry.Name, entry.Ordinal)
			} else {
				fmt.Fprintf(p.w, "    %s (hint %d)\n", entry.Name, entry.Hint)
			}
		}
	}
	for _, bound := range f.BoundImports {
		p.field.Fprintf(p.w, "%s (bound, stamp 0x%X)\n", bound.ModuleName, bound.TimeDateStamp)
		for _, fwd := range bound.Forwarders {
			fmt.Fprintf(p.w, "    forwarder %s\n", fwd)
		}
	}
	if imphash := f.ImportHash(); imphash != "" {
		p.pair("ImportHash", imphash)
	}
}

func (p *Printer) Exports(f *pe.File) {
	p.title("Exports")
	if f.Exports == nil {
		fmt.Fprintln(p.w, "none")
		return
	}
	p.pair("Module", f.Exports.ModuleName)
	for _, entry := range f.Exports.Entries {
		name := entry.Name
		if name == "" {
			name = "<ordinal only>"
		}
		if entry.Forwarder != "" {
			fmt.Fprintf(p.w, "%5d  %-40s -> %s\n", entry.Ordinal, name, entry.Forwarder)
		} else {
			fmt.Fprintf(p.w, "%5d  %-40s 0x%X\n", entry.Ordinal, name, entry.Address)
		}
	}
}

func (p *Printer) Resources(f *pe.File) {
	p.title("Resources")
	if f.Resources == nil {
		fmt.Fprintln(p.w, "none")
		return
	}
	f.WalkResources(func(typeNode, nameNode, langNode *pe.ResourceNode) {
		fmt.Fprintf(p.w, "%-16s %-20s lang %-6d %6d bytes\n",
			typeNode.TypeName(), nameNode.Key(), langNode.ID, langNode.Data.Size)
	})
}

func (p *Printer) Version(f *pe.File) {
	p.title("Version Info")
	info, err := f.VersionInfo()
	if err != nil {
		p.warn.Fprintf(p.w, "version resource: %v\n", err)
		return
	}
	if info == nil {
		fmt.Fprintln(p.w, "none")
		return
	}
	if info.FixedInfo != nil {
		p.pair("FileVersion", info.FileVersion())
		p.pair("ProductVersion", info.ProductVersion())
	}
	for _, table := range info.StringTables {
		p.field.Fprintf(p.w, "StringTable %s\n", table.LangID)
		for _, key := range table.Strings.Keys() {
			value, _ := table.Strings.Get(key)
			fmt.Fprintf(p.w, "    %-20s %v\n", key, value)
		}
	}
}

func (p *Printer) Debug(f *pe.File) {
	p.title("Debug")
	for _, entry := range f.DebugEntries {
		p.field.Fprintf(p.w, "%s (%d bytes)\n", entry.TypeName, entry.SizeOfData)
		switch {
		case entry.Pdb70 != nil:
			guid := pe.GuidFromWindowsArray(entry.Pdb70.Signature)
			fmt.Fprintf(p.w, "    RSDS %s age %d\n    %s\n", guid, entry.Pdb70.Age, entry.PdbPath)
		case entry.Pdb20 != nil:
			fmt.Fprintf(p.w, "    NB10 sig 0x%X age %d\n    %s\n",
				entry.Pdb20.Signature, entry.Pdb20.Age, entry.PdbPath)
		case entry.Misc != nil:
			fmt.Fprintf(p.w, "    MISC %s\n", entry.MiscData)
		case len(entry.Fpo) > 0:
			fmt.Fprintf(p.w, "    %d FPO records\n", len(entry.Fpo))
		}
	}
	if len(f.DebugEntries) == 0 {
		fmt.Fprintln(p.w, "none")
	}
}

func (p *Printer) Tls(f *pe.File) {
	p.title("TLS")
	if f.Tls == nil {
		fmt.Fprintln(p.w, "none")
		return
	}
	p.pair("RawData", fmt.Sprintf("0x%X - 0x%X", f.Tls.StartAddressOfRawData, f.Tls.EndAddressOfRawData))
	p.pair("Index", fmt.Sprintf("0x%X", f.Tls.AddressOfIndex))
	p.pair("Callbacks", fmt.Sprintf("%d", len(f.Tls.Callbacks)))
	for _, cb := range f.Tls.Callbacks {
		fmt.Fprintf(p.w, "    0x%X\n", cb)
	}
}

func (p *Printer) Certificates(f *pe.File) {
	p.title("Certificates")
	if len(f.Certificates) == 0 {
		fmt.Fprintln(p.w, "none")
		return
	}
	for i, cert := range f.Certificates {
		fmt.Fprintf(p.w, "%d  rev 0x%X  type %s  %d bytes\n",
			i, cert.Revision, cert.CertificateTypeName(), len(cert.Data))
	}
}

func (p *Printer) Relocations(f *pe.File) {
	p.title("Relocations")
	total := 0
	for _, block := range f.Relocations {
		total += len(block.Entries)
	}
	fmt.Fprintf(p.w, "%d blocks, %d entries\n", len(f.Relocations), total)

	perType := make(map[string]int)
	for _, block := range f.Relocations {
		for _, entry := range block.Entries {
			perType[entry.TypeName()]++
		}
	}
	names := make([]string, 0, len(perType))
	for name := range perType {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(p.w, "    %-32s %d\n", name, perType[name])
	}
}

func (p *Printer) Hashes(f *pe.File) {
	p.title("Hashes")
	h := f.FileHashes()
	p.pair("MD5", h.MD5)
	p.pair("SHA1", h.SHA1)
	p.pair("SHA256", h.SHA256)
	if h.SSDeep != "" {
		p.pair("SSDeep", h.SSDeep)
	}
	if imphash := f.ImportHash(); imphash != "" {
		p.pair("ImportHash", imphash)
	}
	for _, s := range f.Sections {
		sh := f.SectionHashes(s)
		fmt.Fprintf(p.w, "%-10s %s\n", s.Name, sh.SHA256)
	}
	for _, rh := range f.ResourceHashes() {
		fmt.Fprintf(p.w, "%-16s %-12s lang %-6d %s\n",
			rh.TypeName, rh.Key, rh.Lang, rh.Hashes.SHA256)
	}
}

// Matches prints rule scan results under the given label, pulling the named
// metadata key as the display value when present.
func (p *Printer) Matches(label, metaKey string, matches []yara.Match) {
	if len(matches) == 0 {
		return
	}
	p.title("%s", label)
	for _, m := range matches {
		value := metaString(m.Meta, metaKey)
		if value == "" {
			value = m.RuleName
		}
		fmt.Fprintf(p.w, "%-28s %s\n", m.RuleName, value)
	}
}

func metaString(meta *ordereddict.Dict, key string) string {
	if meta == nil {
		return ""
	}
	if v, ok := meta.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
