package server

import (
	"fmt"
	"strings"
	"sync"
)

// Started from all 256 latin-1 characters and removed the ones that are
// not safe to echo or render wider than one terminal cell.
const validNameChars = " !\"#$%&'()*+-./:;<=>?@\\^_`{|}~" +
	"¡¢£¤¥¦§¨©ª«¬®¯" +
	"°±²³´µ¶·¸¹º»¼½¾¿" +
	"×÷" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"abcdefghijklmnopqrstuvwxyz" +
	"0123456789" +
	"ÀÁÂÃÄÅÆÇÈÉÊËÌÍÎÏ" +
	"ÐÑÒÓÔÕÖØÙÚÛÜÝÞß" +
	"àáâãäåæçèéêëìíîï" +
	"ðñòóôõöøùúûüýþÿ"

// validateName checks a proposed player name. The returned string is a
// user-facing error message, empty when the name is acceptable.
func validateName(name string) string {
	if name == "" {
		return "Please write a name before pressing Enter."
	}
	for _, ch := range name {
		if !strings.ContainsRune(validNameChars, ch) {
			return fmt.Sprintf("The name can't contain a '%c' character.", ch)
		}
	}
	return ""
}

// nameSet is the process-wide registry of names in use. Names are
// compared case-insensitively so two players cannot look identical in
// the member list.
type nameSet struct {
	mu    sync.Mutex
	names map[string]struct{}
}

func newNameSet() *nameSet {
	return &nameSet{names: make(map[string]struct{})}
}

// Claim reserves a name, reporting false if it is already in use.
func (s *nameSet) Claim(name string) bool {
	key := strings.ToLower(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.names[key]; taken {
		return false
	}
	s.names[key] = struct{}{}
	return true
}

// Release frees a claimed name. Releasing an unclaimed name is a no-op.
func (s *nameSet) Release(name string) {
	key := strings.ToLower(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.names, key)
}
