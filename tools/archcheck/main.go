package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const modulePath = "github.com/yairfalse/palautus/"

type Level int

const (
	LevelCmd Level = iota + 1
	LevelDriver
	LevelDomain
	LevelFoundation
	LevelPkg
)

var packageLevels = map[string]Level{
	"cmd":                 LevelCmd,
	"tools":               LevelCmd,
	"internal/engine":     LevelDriver,
	"internal/output":     LevelDriver,
	"internal/reconciler": LevelDomain,
	"internal/snapshot":   LevelDomain,
	"internal/differ":     LevelDomain,
	"internal/storage":    LevelDomain,
	"internal/config":     LevelDomain,
	"internal/cloud":      LevelFoundation,
	"internal/rollback":   LevelFoundation,
	"internal/logger":     LevelFoundation,
	"internal/errors":     LevelFoundation,
	"pkg":                 LevelPkg,
}

type Violation struct {
	FromFile    string
	FromPackage string
	FromLevel   Level
	ToPackage   string
	ToLevel     Level
}

// getPackageLevel returns the level of the longest matching prefix
func getPackageLevel(pkgPath string) Level {
	best, level := "", Level(0)
	for prefix, l := range packageLevels {
		if (pkgPath == prefix || strings.HasPrefix(pkgPath, prefix+"/")) && len(prefix) > len(best) {
			best, level = prefix, l
		}
	}
	return level
}

func getPackageFromPath(root, filePath string) string {
	rel, err := filepath.Rel(root, filepath.Dir(filePath))
	if err != nil {
		return filepath.ToSlash(filepath.Dir(filePath))
	}
	return filepath.ToSlash(rel)
}

func checkFile(root, filePath string) ([]Violation, error) {
	var violations []Violation

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	fset := token.NewFileSet()
	node, err := parser.ParseFile(fset, filePath, content, parser.ImportsOnly)
	if err != nil {
		return nil, err
	}

	fromPackage := getPackageFromPath(root, filePath)
	fromLevel := getPackageLevel(fromPackage)

	if fromLevel == 0 {
		return violations, nil
	}

	for _, imp := range node.Imports {
		importPath := strings.Trim(imp.Path.Value, `"`)

		// Only module-local imports are levelled
		if !strings.HasPrefix(importPath, modulePath) {
			continue
		}
		importPath = strings.TrimPrefix(importPath, modulePath)

		toLevel := getPackageLevel(importPath)
		if toLevel == 0 {
			continue
		}

		// Check for violations: importing from a higher level
		if toLevel < fromLevel {
			violations = append(violations, Violation{
				FromFile:    filePath,
				FromPackage: fromPackage,
				FromLevel:   fromLevel,
				ToPackage:   importPath,
				ToLevel:     toLevel,
			})
		}
	}

	return violations, nil
}

func walkGoFiles(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			name := info.Name()
			if path != root && (name == "vendor" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".go") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func levelName(l Level) string {
	switch l {
	case LevelCmd:
		return "CMD (Level 1)"
	case LevelDriver:
		return "DRIVER (Level 2)"
	case LevelDomain:
		return "DOMAIN (Level 3)"
	case LevelFoundation:
		return "FOUNDATION (Level 4)"
	case LevelPkg:
		return "PKG (Level 5)"
	default:
		return "UNKNOWN"
	}
}

// check walks root and returns every violation plus the number of files checked
func check(root string) ([]Violation, int, error) {
	files, err := walkGoFiles(root)
	if err != nil {
		return nil, 0, err
	}

	var allViolations []Violation
	checkedFiles := 0
	for _, file := range files {
		violations, err := checkFile(root, file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error checking %s: %v\n", file, err)
			continue
		}
		allViolations = append(allViolations, violations...)
		checkedFiles++
	}
	return allViolations, checkedFiles, nil
}

func main() {
	root := "."
	if len(os.Args) > 1 {
		root = os.Args[1]
	}

	fmt.Println("palautus architecture level checker")
	fmt.Println("====================================")
	fmt.Println()
	fmt.Println("Architectural Levels:")
	fmt.Println("  Level 1 (CMD):        cmd/, tools/")
	fmt.Println("  Level 2 (DRIVER):     internal/engine, output")
	fmt.Println("  Level 3 (DOMAIN):     internal/reconciler, snapshot, differ, storage, config")
	fmt.Println("  Level 4 (FOUNDATION): internal/cloud, rollback, logger, errors")
	fmt.Println("  Level 5 (PKG):        pkg/")
	fmt.Println()
	fmt.Println("Rule: Each level can only import from same level or lower (higher number)")
	fmt.Println()

	allViolations, checkedFiles, err := check(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error walking files: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Checked %d Go files\n", checkedFiles)
	fmt.Println()

	if len(allViolations) == 0 {
		fmt.Println("No architectural level violations found.")
		os.Exit(0)
	}

	fmt.Printf("Found %d architectural level violations:\n", len(allViolations))

	// Group violations by type
	violationMap := make(map[string][]Violation)
	for _, v := range allViolations {
		key := fmt.Sprintf("%s -> %s", levelName(v.FromLevel), levelName(v.ToLevel))
		violationMap[key] = append(violationMap[key], v)
	}
	keys := make([]string, 0, len(violationMap))
	for k := range violationMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, violationType := range keys {
		violations := violationMap[violationType]
		fmt.Printf("\n%s (%d violations):\n", violationType, len(violations))
		for i, v := range violations {
			if i >= 5 {
				fmt.Printf("   ... and %d more\n", len(violations)-5)
				break
			}
			fmt.Printf("   %s imports %s\n", v.FromPackage, v.ToPackage)
		}
	}

	fmt.Println()
	fmt.Println("To fix these violations:")
	fmt.Println("   1. Move shared code to lower levels (higher numbers)")
	fmt.Println("   2. Pass capabilities in as interfaces instead of importing upwards")

	os.Exit(1)
}
