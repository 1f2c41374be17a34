package mqtt

import "fmt"

func TopicReminder(prefix, userID, reminderID string) string {
	return fmt.Sprintf("%s/user/%s/reminder/%s", prefix, userID, reminderID)
}

func TopicReminderAck(prefix, userID, reminderID string) string {
	return fmt.Sprintf("%s/user/%s/ack/%s", prefix, userID, reminderID)
}

func TopicUserAcks(prefix string) string {
	return fmt.Sprintf("%s/user/+/ack/+", prefix)
}

func TopicUserOnline(prefix string) string {
	return fmt.Sprintf("%s/user/+/online", prefix)
}

func TopicOnline(prefix, userID string) string {
	return fmt.Sprintf("%s/user/%s/online", prefix, userID)
}
