// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Storage keys and the launch variable that prefixes the user id.
const (
	SessionUserIDKey   = "voiceflow_session_user_id"
	FormattedUserIDKey = "voiceflow_formatted_user_id"
	ProductVariable    = "produkt_navn"

	userPrefix = "user_"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Identity derives user ids from a KV store. The session id is read or
// created once and cached for the life of the Identity.
type Identity struct {
	mu       sync.Mutex
	kv       KV
	logger   *zap.Logger
	cached   string
	fallback string
}

// NewIdentity creates an Identity over kv. A nil kv uses a MemoryKV.
func NewIdentity(kv KV, logger *zap.Logger) *Identity {
	if kv == nil {
		kv = NewMemoryKV()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Identity{kv: kv, logger: logger}
}

// SessionUserID returns the session's base user id, creating it on first use.
// If the store fails, an id that lives for this process is used instead.
func (i *Identity) SessionUserID() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.sessionUserID()
}

func (i *Identity) sessionUserID() string {
	if i.cached != "" {
		return i.cached
	}

	stored, ok, err := i.kv.Get(SessionUserIDKey)
	if err != nil {
		i.logger.Warn("session store unavailable", zap.Error(err))
		return i.fallbackID()
	}
	if ok && stored != "" {
		i.cached = stored
		return stored
	}

	id := newUserID()
	if err := i.kv.Set(SessionUserIDKey, id); err != nil {
		i.logger.Warn("failed to persist session user id", zap.Error(err))
		return i.fallbackID()
	}
	i.cached = id
	return id
}

// UserID returns the id to send for a request with the given variables.
func (i *Identity) UserID(variables map[string]any) string {
	i.mu.Lock()
	defer i.mu.Unlock()

	base := i.sessionUserID()

	if product, ok := variables[ProductVariable].(string); ok && product != "" {
		name := whitespaceRun.ReplaceAllString(product, "_")
		suffix := ""
		if parts := strings.Split(base, userPrefix); len(parts) > 1 {
			suffix = parts[1]
		}
		if suffix == "" {
			suffix = uuid.NewString()
		}
		id := name + "--" + userPrefix + suffix
		if err := i.kv.Set(FormattedUserIDKey, id); err != nil {
			i.logger.Warn("failed to persist formatted user id", zap.Error(err))
		}
		return id
	}

	if formatted, ok, err := i.kv.Get(FormattedUserIDKey); err == nil && ok && formatted != "" {
		return formatted
	}
	return base
}

func (i *Identity) fallbackID() string {
	if i.fallback == "" {
		i.fallback = newUserID()
	}
	return i.fallback
}

func newUserID() string {
	return userPrefix + uuid.NewString()
}
