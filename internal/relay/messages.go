package relay

import (
	"fmt"
	"strings"

	"medtime-companion/internal/model"
)

func AlarmCreatedText(name, clock string) string {
	return fmt.Sprintf("✅ *Alarm scheduled*\n\n📋 Name: %s\n⏰ Time: %s\n\nThe alarm was created in MedTime.", name, clock)
}

func AlarmActiveText(name, clock string) string {
	var b strings.Builder
	b.WriteString("🔔 *ALARM ACTIVE!*\n\n")
	fmt.Fprintf(&b, "📋 %s\n", name)
	if clock != "" {
		fmt.Fprintf(&b, "⏰ %s\n", clock)
	}
	b.WriteString("\n⚠️ Don't forget to take your medication!")
	return b.String()
}

func AlarmAcknowledgedText(name string) string {
	return fmt.Sprintf("✅ *Alarm confirmed*\n\n📋 %s\n\nMedication taken 💊", name)
}

func TestText() string {
	return "*MedTime test 💊*\n\nThis is a test message from MedTime.\n\n✅ Relay connected."
}

// DailySummaryText lists the given alarms in order.
func DailySummaryText(alarms []model.Alarm) string {
	var b strings.Builder
	b.WriteString("📅 *MedTime alarm summary*\n\n")
	fmt.Fprintf(&b, "You have %d alarm(s) configured:\n\n", len(alarms))
	for i, a := range alarms {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, a.Name, a.Clock())
	}
	b.WriteString("\n💊 Don't forget to take your medication!")
	return b.String()
}
