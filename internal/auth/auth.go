// Package auth resolves the Kakao REST API key used for reverse geocoding on
// the desktop CLI and checks it against the Kakao Local API.
//
// Keys come from KAKAO_REST_KEY or from ~/.shorts-media-helper/kakao.gpg, a
// GPG-encrypted file holding the key on its first line. The Lambda reads its
// key from SSM instead (see lambdaboot).
package auth

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	credentialDir  = ".shorts-media-helper"
	credentialFile = "kakao.gpg"
	passphraseFile = "kakao.passphrase"

	// KakaoKeyEnv overrides every other key source.
	KakaoKeyEnv = "KAKAO_REST_KEY"
)

// ErrNoKey is returned by GetKakaoKey when no source provides a key.
var ErrNoKey = errors.New("Kakao REST key not found. Set KAKAO_REST_KEY or store it in ~/.shorts-media-helper/kakao.gpg")

// gpgBinary is replaced in tests.
var gpgBinary = "gpg"

// GetKakaoKey returns the key from the environment, else from the encrypted
// credentials file.
func GetKakaoKey() (string, error) {
	if key := strings.TrimSpace(os.Getenv(KakaoKeyEnv)); key != "" {
		log.Debug().Str("source", "env").Msg("Kakao key resolved")
		return key, nil
	}

	key, err := decryptKeyFile()
	if err != nil {
		log.Debug().Err(err).Msg("No Kakao key available")
		return "", ErrNoKey
	}
	log.Debug().Str("source", "gpg").Msg("Kakao key resolved")
	return key, nil
}

// decryptKeyFile runs gpg on the credentials file and returns its first line.
func decryptKeyFile() (string, error) {
	dir, err := credentialsDir()
	if err != nil {
		return "", err
	}
	keyPath := filepath.Join(dir, credentialFile)
	if _, err := os.Stat(keyPath); err != nil {
		return "", fmt.Errorf("credentials file %s: %w", keyPath, err)
	}

	args := []string{"--decrypt", "--quiet", "--batch"}
	if p := passphrasePath(dir); p != "" {
		args = append(args, "--pinentry-mode", "loopback", "--passphrase-file", p)
	}
	args = append(args, keyPath)

	var stderr bytes.Buffer
	cmd := exec.Command(gpgBinary, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("gpg --decrypt %s: %w: %s", keyPath, err, strings.TrimSpace(stderr.String()))
	}

	key := firstLine(out)
	if key == "" {
		return "", fmt.Errorf("%s decrypted to an empty key", keyPath)
	}
	return key, nil
}

// passphrasePath returns the passphrase file next to the key when it exists
// and only its owner can read it, else "" so gpg asks interactively.
func passphrasePath(dir string) string {
	p := filepath.Join(dir, passphraseFile)
	fi, err := os.Stat(p)
	if err != nil {
		return ""
	}
	if perm := fi.Mode().Perm(); perm&0o077 != 0 {
		log.Warn().
			Str("file", p).
			Str("permissions", fmt.Sprintf("%04o", perm)).
			Msg("Ignoring passphrase file readable by others (chmod 600 it)")
		return ""
	}
	return p
}

func credentialsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, credentialDir), nil
}

// firstLine trims the decrypted payload to its first non-empty line, so a key
// saved with a trailing comment or newline still works.
func firstLine(b []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return line
		}
	}
	return ""
}
