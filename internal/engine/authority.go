package engine

import "github.com/DoyleJ11/flashcountry-pvp/internal/room"

// ResolveAuthority names the peer allowed to write shared transitions:
// the host while connected, otherwise the only connected player.
// It returns "" when nobody qualifies.
func ResolveAuthority(r room.Room) string {
	if host, ok := r.Host(); ok && r.Players[host].Connected {
		return host
	}
	var connected []string
	for _, id := range r.PlayerIDs() {
		if r.Players[id].Connected {
			connected = append(connected, id)
		}
	}
	if len(connected) == 1 {
		return connected[0]
	}
	return ""
}
