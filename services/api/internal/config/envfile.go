package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// LoadEnvFile loads the nearest .env from the working directory or its
// parents. Variables already set in the environment win.
func LoadEnvFile(logger logrus.FieldLogger) {
	path, err := findEnvFile()
	if err != nil {
		logger.WithError(err).Warn("failed to locate .env")
		return
	}
	if path == "" {
		logger.Debug(".env not found in current or parent directories")
		return
	}

	if err := godotenv.Load(path); err != nil {
		logger.WithError(err).WithField("path", path).Warn("failed to load .env")
		return
	}
	logger.WithField("path", path).Info("loaded env file")
}

func findEnvFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for i := 0; i < 6; i++ {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}
