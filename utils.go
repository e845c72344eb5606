package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

const appName = "powerusage"

// getDataDir возвращает папку данных приложения и создает ее при необходимости.
// Windows: %LOCALAPPDATA%\powerusage, остальные ОС: $XDG_DATA_HOME или ~/.local/share.
func getDataDir() (string, error) {
	var base string
	if runtime.GOOS == "windows" {
		base = os.Getenv("LOCALAPPDATA")
		if base == "" {
			base = os.Getenv("APPDATA")
		}
	} else {
		base = os.Getenv("XDG_DATA_HOME")
	}
	if base == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("не удалось получить домашнюю папку: %w", err)
		}
		base = filepath.Join(homeDir, ".local", "share")
		if runtime.GOOS == "windows" {
			base = filepath.Join(homeDir, "AppData", "Local")
		}
	}

	dataDir := filepath.Join(base, appName)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("не удалось создать папку для данных: %w", err)
	}
	return dataDir, nil
}

// getDBPath возвращает путь к файлу базы данных
func getDBPath() string {
	dataDir, err := getDataDir()
	if err != nil {
		log.Warnf("⚠️ Не удалось создать папку данных, используем текущую папку: %v", err)
		return appName + ".sqlite"
	}
	return filepath.Join(dataDir, appName+".sqlite")
}

// getExportPath возвращает путь экспортируемого файла.
// Голое имя файла кладется в dir, пути с папками остаются как есть.
func getExportPath(filename, dir string) string {
	if filepath.IsAbs(filename) || filepath.Base(filename) != filename || dir == "" {
		return filename
	}
	return filepath.Join(dir, filename)
}

// formatDuration форматирует длительность фазы: "1 ч 5 мин", "4 мин 30 с", "45 с"
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%d ч %d мин", hours, minutes)
	case minutes > 0 && seconds > 0:
		return fmt.Sprintf("%d мин %d с", minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%d мин", minutes)
	}
	return fmt.Sprintf("%d с", seconds)
}

// normalizeKeyInput переводит клавиши русской раскладки в латиницу.
// Интерфейс использует только q, n и c.
func normalizeKeyInput(keyID string) string {
	switch keyID {
	case "й":
		return "q"
	case "т":
		return "n"
	case "с":
		return "c"
	}
	return keyID
}

// getPathsFromDir рекурсивно ищет в dir файлы, имя которых содержит один из маркеров.
// Результат отсортирован, чтобы порядок обработки файлов был детерминированным.
func getPathsFromDir(dir string, markers []string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if patternFind(d.Name(), markers) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("поиск файлов в %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// patternFind проверяет, содержит ли name хотя бы один маркер
func patternFind(name string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

// newRunDir создает папку usagerunfrom<ts> с подпапками baseline и test
func newRunDir(root string, now time.Time) (string, error) {
	dir := filepath.Join(root, fmt.Sprintf("usagerunfrom%d", now.Unix()))
	for _, sub := range []string{"baseline", "test"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return "", fmt.Errorf("создание %s: %w", sub, err)
		}
	}
	return dir, nil
}
