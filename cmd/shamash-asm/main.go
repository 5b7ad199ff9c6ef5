package main

import (
	"archive/zip"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/gops/agent"
	"github.com/joho/godotenv"

	"github.com/aalsanie/shamash-sub001/internal/finding"
	"github.com/aalsanie/shamash-sub001/internal/pipeline"
	"github.com/aalsanie/shamash-sub001/pkg/factmodel"
	"github.com/aalsanie/shamash-sub001/pkg/shamashlog"
)

func main() {
	var (
		flagConfigFile = flag.String("config", "shamash/configs/asm.yml", "path to the shamash ASM configuration file")
		flagRoots      = flag.String("roots", ".", "comma-separated list of directories and/or jars to scan")
		flagEnvFile    = flag.String("env-file", "", "optional .env file to load into the environment at startup")
		flagLogLevel   = flag.String("loglevel", "info", "debug, info, notice, warn, err, crit")
		flagGops       = flag.Bool("gops", false, "listen via github.com/google/gops/agent (for debugging)")
		flagOut        = flag.String("out", "-", "write JSON findings here, or '-' for stdout")
	)
	flag.Parse()

	if *flagEnvFile != "" {
		if err := godotenv.Load(*flagEnvFile); err != nil {
			shamashlog.Fatalf("loading env file %s: %s", *flagEnvFile, err.Error())
		}
	}
	shamashlog.SetLogLevel(*flagLogLevel)

	if *flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			shamashlog.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	cfgBytes, err := os.ReadFile(*flagConfigFile)
	if err != nil {
		shamashlog.Fatalf("reading config file %s: %s", *flagConfigFile, err.Error())
	}

	units, err := collectUnits(strings.Split(*flagRoots, ","))
	if err != nil {
		shamashlog.Fatalf("collecting bytecode units: %s", err.Error())
	}

	result, err := pipeline.Run(context.Background(), units, cfgBytes, nil, time.Now())
	if err != nil {
		shamashlog.Errorf("scan rejected: %s", err.Error())
		for _, d := range result.Diagnostics {
			shamashlog.Errorf("  %s", d.Error())
		}
		os.Exit(1)
	}

	if err := writeFindings(*flagOut, result.Findings); err != nil {
		shamashlog.Fatalf("writing findings: %s", err.Error())
	}

	if result.Score.Band == "CRITICAL" {
		os.Exit(2)
	}
}

// collectUnits walks each root: directories are scanned for .class files,
// paths ending in .jar/.war are opened as zip archives and every .class
// entry inside becomes one unit.
func collectUnits(roots []string) ([]factmodel.BytecodeUnit, error) {
	var units []factmodel.BytecodeUnit
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}
		if info.IsDir() {
			found, err := collectDir(root)
			if err != nil {
				return nil, err
			}
			units = append(units, found...)
			continue
		}
		if strings.HasSuffix(root, ".jar") || strings.HasSuffix(root, ".war") {
			found, err := collectJar(root)
			if err != nil {
				return nil, err
			}
			units = append(units, found...)
			continue
		}
		return nil, fmt.Errorf("unsupported bytecode root: %s", root)
	}
	return units, nil
}

func collectDir(root string) ([]factmodel.BytecodeUnit, error) {
	var units []factmodel.BytecodeUnit
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".class") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		units = append(units, factmodel.BytecodeUnit{
			OriginID: path,
			Location: factmodel.SourceLocation{
				OriginKind: factmodel.OriginDirClass,
				OriginPath: path,
			},
			Bytes: data,
		})
		return nil
	})
	return units, err
}

func collectJar(path string) ([]factmodel.BytecodeUnit, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening jar %s: %w", path, err)
	}
	defer r.Close()

	var units []factmodel.BytecodeUnit
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, ".class") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s in %s: %w", f.Name, path, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s in %s: %w", f.Name, path, err)
		}
		units = append(units, factmodel.BytecodeUnit{
			OriginID: path + "!" + f.Name,
			Location: factmodel.SourceLocation{
				OriginKind:    factmodel.OriginJarEntry,
				OriginPath:    path,
				ContainerPath: path,
				EntryPath:     f.Name,
			},
			Bytes: data,
		})
	}
	return units, nil
}

func writeFindings(out string, findings []finding.Finding) error {
	var w io.Writer = os.Stdout
	if out != "-" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(findings)
}
