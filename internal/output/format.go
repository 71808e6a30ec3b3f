// Writes framed messages to configured destinations (file, stdout, beats)
package output

import (
	"dcsingest/pkg/message"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Single line text form:
// <timestamp> <medium id> [platform=<id>] [<medium type>/<channel>] key=value... len=<n> <quoted body>
func FormatText(msg *message.Message) (line string) {
	var builder strings.Builder

	builder.WriteString(timestampOf(msg).Format(time.RFC3339Nano))
	builder.WriteByte(' ')

	mediumID, ok := msg.MediumID()
	if !ok {
		mediumID = "-"
	}
	builder.WriteString(mediumID)

	if msg.Platform != nil {
		fmt.Fprintf(&builder, " platform=%s", msg.Platform.ID)
	}
	if msg.TransportMedium != nil {
		fmt.Fprintf(&builder, " medium=%s", msg.TransportMedium.MediumType)
	}

	measurements := msg.Measurements()
	keys := make([]string, 0, len(measurements))
	for key := range measurements {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&builder, " %s=%s", key, measurements[key].String())
	}

	fmt.Fprintf(&builder, " len=%d %s", len(msg.Body()), strconv.Quote(string(msg.Body())))
	line = builder.String()
	return
}

// Structured event fields shared by structured sinks
func Fields(msg *message.Message) (fields map[string]any) {
	mediumID, _ := msg.MediumID()

	measurements := make(map[string]any)
	for key, value := range msg.Measurements() {
		measurements[key] = value.Native()
	}

	medium := map[string]any{
		"id": mediumID,
	}
	if msg.TransportMedium != nil {
		medium["type"] = msg.TransportMedium.MediumType
		medium["channel"] = msg.TransportMedium.Channel
		if msg.TransportMedium.TimeZone != "" {
			medium["timezone"] = msg.TransportMedium.TimeZone
		}
	}

	fields = map[string]any{
		"@timestamp":   timestampOf(msg),
		"message":      string(msg.Body()),
		"header":       string(msg.Header()),
		"medium":       medium,
		"measurements": measurements,
		"event": map[string]any{
			"id": msg.ID.String(),
		},
	}
	if msg.Platform != nil {
		fields["platform"] = map[string]any{
			"id":          msg.Platform.ID,
			"agency":      msg.Platform.Agency,
			"description": msg.Platform.Description,
		}
	}
	return
}

func timestampOf(msg *message.Message) time.Time {
	ts, ok := msg.Timestamp()
	if !ok {
		return time.Time{}
	}
	return ts.UTC()
}
