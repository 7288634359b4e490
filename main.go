package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"sgstatic/pkg/pe"
	"sgstatic/pkg/report"
	"sgstatic/pkg/yara"
)

type options struct {
	targets   []string
	recursive bool
	dump      []string
	hashes    bool
	extract   string
	peid      bool
	clamav    bool
	rulesDir  string
}

func usage() {
	name := filepath.Base(os.Args[0])
	fmt.Println("Static analyzer for PE images: headers, directories, resources,")
	fmt.Println("hashes and signature scanning.")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("   ", name, "[flags] pefile...")
	fmt.Println("")
	fmt.Println("Flags:")
	fmt.Println("    -p, --pe         PE file or directory to analyze")
	fmt.Println("    -r, --recursive  descend one directory level")
	fmt.Println("    -d, --dump       comma-separated categories: all,dos,pe,opt,")
	fmt.Println("                     sections,imports,exports,resources,version,")
	fmt.Println("                     debug,tls,certificates,relocations,hashes")
	fmt.Println("    --hashes         shorthand for --dump hashes")
	fmt.Println("    -x, --extract    extract resources into the given directory")
	fmt.Println("    --peid           scan with the packer identification rules")
	fmt.Println("    --clamav         scan with the signature rules")
	fmt.Println("    --rules          rule bundle directory (default \"resources\")")
	fmt.Println("    -h, --help       display help information")
}

func parseArgs() *options {
	opts := &options{}
	var peArg, dumpArg string

	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.Usage = usage
	fs.StringVar(&peArg, "p", "", "")
	fs.StringVar(&peArg, "pe", "", "")
	fs.BoolVar(&opts.recursive, "r", false, "")
	fs.BoolVar(&opts.recursive, "recursive", false, "")
	fs.StringVar(&dumpArg, "d", "", "")
	fs.StringVar(&dumpArg, "dump", "", "")
	fs.BoolVar(&opts.hashes, "hashes", false, "")
	fs.StringVar(&opts.extract, "x", "", "")
	fs.StringVar(&opts.extract, "extract", "", "")
	fs.BoolVar(&opts.peid, "peid", false, "")
	fs.BoolVar(&opts.clamav, "clamav", false, "")
	fs.StringVar(&opts.rulesDir, "rules", "resources", "")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(-1)
	}

	if peArg != "" {
		opts.targets = append(opts.targets, peArg)
	}
	opts.targets = append(opts.targets, fs.Args()...)
	if len(opts.targets) == 0 {
		log.Println("no PE file supplied")
		usage()
		os.Exit(-1)
	}

	if dumpArg != "" {
		for _, name := range strings.Split(dumpArg, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if !report.KnownCategory(name) {
				log.Printf("unknown dump category %q", name)
				os.Exit(-1)
			}
			opts.dump = append(opts.dump, name)
		}
	}
	if opts.hashes {
		opts.dump = append(opts.dump, "hashes")
	}
	return opts
}

// expandTargets resolves directories to their regular files, one level deep.
// A bad target is reported to stderr and skipped; per-file failures never
// change the exit status.
func expandTargets(opts *options) []string {
	var files []string
	for _, target := range opts.targets {
		info, err := os.Stat(target)
		if err != nil {
			log.Println(err)
			continue
		}
		if !info.IsDir() {
			files = append(files, target)
			continue
		}
		if !opts.recursive {
			log.Printf("%s is a directory (use -r to scan it)", target)
			continue
		}
		entries, err := os.ReadDir(target)
		if err != nil {
			log.Println(err)
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			files = append(files, filepath.Join(target, entry.Name()))
		}
	}
	return files
}

// loadRuleSet loads one bundle; a missing or malformed bundle is fatal with
// the rule-load exit code.
func loadRuleSet(path string) *yara.RuleSet {
	rs, err := yara.LoadRules(path)
	if err != nil {
		log.Println(err)
		os.Exit(1)
	}
	return rs
}

func main() {
	opts := parseArgs()
	files := expandTargets(opts)

	var peidRules, clamavRules *yara.RuleSet
	if opts.peid {
		peidRules = loadRuleSet(filepath.Join(opts.rulesDir, "peid.yara"))
	}
	if opts.clamav {
		clamavRules = loadRuleSet(filepath.Join(opts.rulesDir, "clamav.yara"))
	}

	printer := report.NewPrinter(os.Stdout)

	for i, path := range files {
		if i > 0 {
			printer.Separator()
		}
		analyze(printer, path, opts, peidRules, clamavRules)
	}
}

func analyze(printer *report.Printer, path string, opts *options, peidRules, clamavRules *yara.RuleSet) {
	f, err := pe.Open(path)
	if err != nil && f == nil {
		log.Printf("%s: %v", path, err)
		return
	}
	defer func() {
		_ = f.Close()
	}()

	if !f.IsValid() {
		// Not a PE image; fall back to the magic rules for a file type.
		var magic []yara.Match
		if rs, err := yara.LoadRules(filepath.Join(opts.rulesDir, "magic.yara")); err == nil {
			magic, _ = rs.ScanFile(path)
		}
		printer.Invalid(path, f.InvalidReason(), magic)
		return
	}

	if len(opts.dump) > 0 {
		if err := printer.Dump(f, opts.dump); err != nil {
			log.Printf("%s: %v", path, err)
		}
	} else {
		printer.Summary(f)
	}

	if peidRules != nil {
		printer.Matches("Packer", "packer_name", peidRules.ScanBytes(f.Data()))
	}
	if clamavRules != nil {
		printer.Matches("Signature", "signature", clamavRules.ScanBytes(f.Data()))
	}

	if opts.extract != "" {
		written, err := f.ExtractResources(opts.extract)
		if err != nil {
			log.Printf("%s: extracting resources: %v", path, err)
		}
		for _, res := range written {
			fmt.Printf("extracted %s\n", res.Path)
		}
	}
}
