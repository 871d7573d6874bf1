// Command rpms runs the remote patient monitoring server: chat, vitals alerting,
// reminders and the realtime WebSocket gateway.
package main

import (
	"log"

	"rpms/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
