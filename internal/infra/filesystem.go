package infra

import (
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/groupwarden/groupwarden/internal/config"
)

// GetWorkDir returns the bot's dot directory, creating it on first use.
func GetWorkDir(path ...string) string {
	parts := append([]string{config.Get().DotPath}, path...)
	workDir := filepath.Join(parts...)
	if err := os.MkdirAll(workDir, os.ModePerm); err != nil {
		log.Fatalln(err)
	}
	return workDir
}
