package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const runConfigName = "config.json"

// loadRunConfig читает config.json папки прогона.
// Отсутствующий файл не ошибка: возвращается пустая конфигурация.
func loadRunConfig(path string) (RunConfig, error) {
	var cfg RunConfig
	if path == "" {
		return cfg, nil
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, runConfigName)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Warnf("⚠️ %s не найден, время фаз возьмем из аргументов", path)
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("чтение %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("разбор %s: %w", path, err)
	}
	return cfg, nil
}

// saveRunConfig записывает config.json
func saveRunConfig(path string, cfg RunConfig) error {
	v := viper.New()
	v.SetConfigType("json")
	v.Set("starttime", cfg.StartTime)
	v.Set("baselinestarttime", cfg.BaselineStartTime)
	v.Set("baselineendtime", cfg.BaselineEndTime)
	v.Set("teststarttime", cfg.TestStartTime)
	v.Set("testendtime", cfg.TestEndTime)
	if len(cfg.Args) > 0 {
		v.Set("args", cfg.Args)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("запись %s: %w", path, err)
	}
	return nil
}
