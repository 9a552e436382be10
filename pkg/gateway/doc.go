// Package gateway implements the real-time push gateway: it upgrades HTTP
// requests to WebSocket connections, authenticates each one against a guild
// and one of its members, and pushes events to every connection watching a guild.
//
// # Protocol
//
// Every frame is a JSON object {"event": string, "data": object}.
//
//	out  PREPARE        {"interval": 45000, "id": <guild_id>}   right after open
//	out  IDENTIFY       {"guild": {...}, "member": {...}}        right after PREPARE
//	in   HEARTBEAT      {}                                       any time
//	out  HEARTBEAT_ACK  {"received": <n>}                        per HEARTBEAT
//
// Clients connect with ?token=<bearer>&guild_id=<id>. Rejections close the
// socket with code 1003 and a human readable reason.
//
// # Basic Usage
//
//	dir := directory.NewStore(db)
//	m, err := gateway.NewManager(dir, dir,
//	    gateway.WithLogger(log),
//	    gateway.WithCheckOriginWhitelist([]string{"https://example.com"}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	r.GET("/gateway", func(c *gin.Context) {
//	    _ = m.HandleConnection(c.Writer, c.Request)
//	})
//
//	// push from anywhere
//	m.Broadcast(guildID, gateway.NewMessage("MESSAGE_CREATE", payload))
//	m.BroadcastAll(gateway.NewMessage("MAINTENANCE", nil))
//
//	// graceful shutdown
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//	defer cancel()
//	m.Shutdown(ctx)
//
// # Concurrency
//
// Each connection is served by its own goroutine. The Registry lock is held
// only for single map operations; broadcasts snapshot their targets and write
// outside the lock, so a slow peer never blocks registration or other guilds.
// A failed write prunes that connection and never reaches the caller.
package gateway
