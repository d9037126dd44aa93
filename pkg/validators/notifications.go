// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package validators

import (
	"context"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/platform-engineering-labs/azext/pkg/logging"
)

// Notification event types.
const (
	EventTestRunEnded     = "TestRunEnded"
	EventTestRunStarted   = "TestRunStarted"
	EventTriggerCompleted = "TriggerCompleted"
	EventTriggerDisabled  = "TriggerDisabled"
)

var (
	notificationEventTypes = []string{EventTestRunEnded, EventTestRunStarted, EventTriggerCompleted, EventTriggerDisabled}
	testRunStatuses        = []string{
		"ACCEPTED", "NOTSTARTED", "PROVISIONING", "PROVISIONED", "CONFIGURING", "CONFIGURED",
		"EXECUTING", "EXECUTED", "DEPROVISIONING", "DEPROVISIONED", "DONE", "CANCELLING",
		"CANCELLED", "FAILED", "VALIDATION_SUCCESS", "VALIDATION_FAILURE",
	}
	testRunResults = []string{"PASSED", "NOT_APPLICABLE", "FAILED"}

	requiredEventKeys = []string{"event-id", "type"}
	allowedEventKeys  = []string{"event-id", "type", "status", "result"}

	eventPairPattern = regexp.MustCompile(`([\w-]+)=([\w,-]+)`)
)

// RecurrenceDatesInMonth requires days of month between 1 and 31.
func RecurrenceDatesInMonth(_ context.Context, ns *Namespace) error {
	for _, day := range ns.RecurrenceDatesInMonth {
		if day < 1 || day > 31 {
			return invalidf("Invalid recurrence-dates item: %d. Expected integer between 1 and 31", day)
		}
	}
	return nil
}

// ScheduleTestIDs requires exactly one lowercase test ID.
func ScheduleTestIDs(_ context.Context, ns *Namespace) error {
	if ns.TestIDs == nil {
		return nil
	}
	if len(ns.TestIDs) != 1 {
		return invalidf("Currently we only support one test ID per schedule.")
	}
	if !idPattern.MatchString(ns.TestIDs[0]) {
		return invalidf("Invalid test-id value.")
	}
	return nil
}

// NotificationRuleTestIDs requires lowercase test IDs.
func NotificationRuleTestIDs(_ context.Context, ns *Namespace) error {
	for _, id := range ns.TestIDs {
		if !idPattern.MatchString(id) {
			return invalidf("Invalid test-id value.")
		}
	}
	return nil
}

// Events parses --event values into Events.
func Events(ctx context.Context, ns *Namespace) error {
	if ns.Event == nil {
		logging.LoggerFromContext(ctx).V(1).Info("No events provided")
		return nil
	}
	events, err := parseEvents(ns.Event)
	if err != nil {
		return err
	}
	ns.Events = events
	return nil
}

// AddEvents parses --add-event values into AddEvents.
func AddEvents(ctx context.Context, ns *Namespace) error {
	if ns.AddEvent == nil {
		logging.LoggerFromContext(ctx).V(1).Info("No events provided")
		return nil
	}
	events, err := parseEvents(ns.AddEvent)
	if err != nil {
		return err
	}
	ns.AddEvents = events
	return nil
}

// parseEvents reads each group of "key=value" words as one event. Event IDs
// must be unique across groups.
func parseEvents(groups [][]string) ([]NotificationEvent, error) {
	var events []NotificationEvent
	seen := make(map[string]bool)
	for _, group := range groups {
		fields := make(map[string]string)
		for _, part := range group {
			matches := eventPairPattern.FindAllStringSubmatch(part, -1)
			if matches == nil {
				return nil, invalidf("Invalid format for event: %s", part)
			}
			for _, m := range matches {
				fields[m[1]] = m[2]
			}
		}
		event, err := notificationEvent(fields)
		if err != nil {
			return nil, err
		}
		if seen[event.EventID] {
			return nil, invalidf("Duplicate event-id: %s found in the event list.", event.EventID)
		}
		seen[event.EventID] = true
		events = append(events, event)
	}
	return events, nil
}

func notificationEvent(fields map[string]string) (NotificationEvent, error) {
	var missing, unknown []string
	for _, k := range requiredEventKeys {
		if _, ok := fields[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return NotificationEvent{}, invalidf("Required fields %s are missing.", strings.Join(missing, ", "))
	}
	for k := range fields {
		if !slices.Contains(allowedEventKeys, k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return NotificationEvent{}, invalidf("Invalid fields provided %s.", strings.Join(unknown, ", "))
	}

	event := NotificationEvent{EventID: fields["event-id"], Type: fields["type"]}
	if !slices.Contains(notificationEventTypes, event.Type) {
		return NotificationEvent{}, invalidf("Invalid event type: %s. Allowed values: %s",
			event.Type, strings.Join(notificationEventTypes, ", "))
	}

	status, hasStatus := fields["status"]
	result, hasResult := fields["result"]
	if event.Type != EventTestRunEnded {
		if hasStatus || hasResult {
			return NotificationEvent{}, invalidf("Event type '%s' should not have status and result fields.", event.Type)
		}
		return event, nil
	}
	if hasStatus {
		event.Status = strings.Split(status, ",")
		for _, s := range event.Status {
			if !slices.Contains(testRunStatuses, s) {
				return NotificationEvent{}, invalidf("Invalid status: %s. Allowed values: %s",
					status, strings.Join(testRunStatuses, ", "))
			}
		}
	}
	if hasResult {
		event.Result = strings.Split(result, ",")
		for _, r := range event.Result {
			if !slices.Contains(testRunResults, r) {
				return NotificationEvent{}, invalidf("Invalid result: %s. Allowed values: %s",
					result, strings.Join(testRunResults, ", "))
			}
		}
	}
	return event, nil
}

// RemoveEvents parses --remove-event values. Each value is a single
// "event-id=<id>" word.
func RemoveEvents(ctx context.Context, ns *Namespace) error {
	if ns.RemoveEvent == nil {
		logging.LoggerFromContext(ctx).V(1).Info("No event-id provided to be removed")
		return nil
	}
	removals := make([]map[string]string, 0, len(ns.RemoveEvent))
	for _, group := range ns.RemoveEvent {
		if len(group) != 1 {
			return invalidf("Invalid pattern for --remove-event %v.", group)
		}
		matches := eventPairPattern.FindAllStringSubmatch(group[0], -1)
		if matches == nil {
			return invalidf("Invalid pattern for --remove-event %v.", group)
		}
		fields := make(map[string]string, len(matches))
		for _, m := range matches {
			fields[m[1]] = m[2]
		}
		if _, ok := fields["event-id"]; !ok {
			return invalidf("Invalid pattern for --remove-event %v.", group)
		}
		removals = append(removals, fields)
	}
	logging.LoggerFromContext(ctx).V(1).Info("Parsed remove event list", "count", len(removals))
	ns.RemoveEvents = removals
	return nil
}
