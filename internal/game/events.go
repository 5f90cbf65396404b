package game

type EventType string

const (
	EventDamage           EventType = "damage_dealt"
	EventCritical         EventType = "critical_hit"
	EventLucky            EventType = "lucky_click"
	EventDiamondDrop      EventType = "diamond_drop"
	EventLevelUp          EventType = "level_up"
	EventUpgradePurchased EventType = "upgrade_purchased"
	EventBossEngaged      EventType = "boss_engaged"
	EventBossDamaged      EventType = "boss_damaged"
	EventBossPhase        EventType = "boss_phase"
	EventBossAttack       EventType = "boss_attack"
	EventBossDefeated     EventType = "boss_defeated"
	EventBossFled         EventType = "boss_fled"
	EventPrestige         EventType = "prestige"
	EventAchievement      EventType = "achievement_unlocked"
	EventSkinPurchased    EventType = "skin_purchased"
	EventSkinEquipped     EventType = "skin_equipped"
	EventDailyClaimed     EventType = "daily_claimed"
	EventAutoClick        EventType = "auto_click"
	EventSaveFailed       EventType = "save_failed"
	EventSaveRecovered    EventType = "save_recovered"
)

// Event is a notification for the presentation layer. Ref names the boss,
// upgrade, achievement or skin involved, when there is one.
type Event struct {
	Type    EventType `json:"type"`
	Ref     string    `json:"ref,omitempty"`
	Amount  float64   `json:"amount,omitempty"`
	Level   int       `json:"level,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Publisher receives the events produced by each state transition.
type Publisher interface {
	Publish(playerID string, events []Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, []Event) {}

func levelUpEvents(ups []LevelUp) []Event {
	out := make([]Event, 0, len(ups))
	for _, u := range ups {
		out = append(out, Event{Type: EventLevelUp, Level: u.Level, Amount: u.RewardCoins})
	}
	return out
}
