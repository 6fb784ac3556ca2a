package topics

const (
	// Change feed, um tópico por tipo de entidade
	BetChanges         = "bet_changes"
	SquaresChanges     = "squares_changes"
	ParticipantChanges = "participant_changes"
	InviteChanges      = "invite_changes"
	FriendshipChanges  = "friendship_changes"

	// Notificações (fire-and-forget)
	Notifications = "notifications"

	// DLQs
	NotificationsDLQ = "notifications_dlq"
)
