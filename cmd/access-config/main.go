package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhool/access"
	"github.com/dhool/access/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "convert":
		handleConvert()
	case "validate":
		handleValidate()
	case "stats":
		handleStats()
	case "apply":
		handleApply()
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("access-config - Configuration tool for the access engine")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  access-config convert <input> <output>  - Convert between formats")
	fmt.Println("  access-config validate <file>           - Validate configuration")
	fmt.Println("  access-config stats <file>              - Show configuration statistics")
	fmt.Println("  access-config apply <file>              - Dry-run apply to a fresh engine")
	fmt.Println()
	fmt.Println("Supported formats: .yaml, .yml, .json")
}

func handleConvert() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: access-config convert <input> <output>")
		os.Exit(1)
	}

	inputFile := os.Args[2]
	outputFile := os.Args[3]

	cfg, err := loadConfig(inputFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := saveConfig(cfg, outputFile); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Converted %s -> %s\n", inputFile, outputFile)
}

func handleValidate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: access-config validate <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	clean, problems := cfg.Validate()
	for _, p := range problems {
		fmt.Printf("  warning: %s\n", p)
	}
	if len(problems) > 0 {
		fmt.Printf("Configuration loads with %d entries skipped\n", len(problems))
	} else {
		fmt.Printf("Configuration is valid\n")
	}
	fmt.Printf("  Version:  %d\n", clean.Version)
	fmt.Printf("  Plans:    %d\n", len(clean.Plans))
	fmt.Printf("  Roles:    %d\n", len(clean.Roles))
	fmt.Printf("  Policies: %d\n", len(clean.Policies))
	fmt.Printf("  Modules:  %d\n", len(clean.Modules))
}

func handleStats() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: access-config stats <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	stat, _ := os.Stat(filename)

	fmt.Println("Configuration Statistics")
	fmt.Println("========================")
	if stat != nil {
		fmt.Printf("File size: %d bytes\n", stat.Size())
	}
	fmt.Printf("Version: %d\n", cfg.Version)
	fmt.Println()

	fmt.Println("Components:")
	for name, count := range cfg.Stats() {
		fmt.Printf("  %-9s %d\n", name+":", count)
	}
	fmt.Println()

	if len(cfg.Policies) > 0 {
		byOutcome := map[access.FieldOutcome]int{}
		for _, p := range cfg.Policies {
			byOutcome[p.Access]++
		}
		fmt.Println("Policy Details:")
		fmt.Printf("  write: %d\n", byOutcome[access.FieldWrite])
		fmt.Printf("  read:  %d\n", byOutcome[access.FieldRead])
		fmt.Printf("  none:  %d\n", byOutcome[access.FieldNone])
		fmt.Println()
	}

	if len(cfg.Roles) > 0 {
		totalPerms := 0
		for _, r := range cfg.Roles {
			for _, perms := range r.Permissions {
				totalPerms += len(perms)
			}
		}
		fmt.Println("Role Details:")
		fmt.Printf("  Total permissions: %d\n", totalPerms)
		fmt.Printf("  Avg per role:      %.1f\n", float64(totalPerms)/float64(len(cfg.Roles)))
		fmt.Println()
	}

	fmt.Println("Engine Configuration:")
	fmt.Printf("  Decision cache TTL: %dms\n", cfg.Engine.DecisionCacheTTL)
	fmt.Printf("  Field cache TTL:    %dms\n", cfg.Engine.FieldCacheTTL)
	fmt.Printf("  Audit buffer:       %d\n", cfg.Engine.AuditBuffer)
}

func handleApply() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: access-config apply <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	svc, err := access.NewService(access.WithLogger(logger.NewSLogLogger(nil)))
	if err != nil {
		fmt.Printf("Error building engine: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	if err := svc.ApplyConfig(context.Background(), cfg); err != nil {
		fmt.Printf("Error applying config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Configuration applied successfully\n")
	fmt.Printf("  Plans loaded:    %d\n", len(cfg.Plans))
	fmt.Printf("  Roles loaded:    %d\n", len(cfg.Roles))
	fmt.Printf("  Policies loaded: %d\n", len(cfg.Policies))
	fmt.Printf("  Modules loaded:  %d\n", len(cfg.Modules))
}

func loadConfig(filename string) (*access.Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	loader := access.NewConfigLoader()

	switch ext {
	case ".yaml", ".yml":
		return loader.LoadYAML(data)
	case ".json":
		return loader.LoadJSON(data)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

func saveConfig(cfg *access.Config, filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))

	var data []byte
	var err error

	switch ext {
	case ".yaml", ".yml":
		data, err = cfg.ToYAML()
	case ".json":
		data, err = cfg.ToJSON()
	default:
		return fmt.Errorf("unsupported file format: %s", ext)
	}

	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
