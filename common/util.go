package common

import (
	"math/rand"
	"os"
)

func PanicIfErr(err error) {
	if err != nil {
		panic(err)
	}
}

// Remove deletes the file at path and ignores a missing file. Tests use it to clean up index files.
func Remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		panic(err)
	}
}

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandStr returns a random alphanumeric string whose length is in [min, max].
func RandStr(min, max int) string {
	n := min
	if max > min {
		n += rand.Intn(max - min + 1)
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}
