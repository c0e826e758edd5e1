package alerting

import "time"

// DefaultCooldown is the minimum gap between two alerts of the same kind for one instrument.
const DefaultCooldown = 300 * time.Second

type cooldownKey struct {
	instrument string
	kind       ConditionType
}

// CooldownRegistry 记录每个 (合约, 预警类型) 最近一次发出预警的时间。
// 进程内状态，不做持久化；不加锁，只能由单一评估循环使用。
type CooldownRegistry struct {
	interval time.Duration
	last     map[cooldownKey]time.Time
}

// NewCooldownRegistry builds an empty registry. A non-positive interval disables suppression.
func NewCooldownRegistry(interval time.Duration) *CooldownRegistry {
	return &CooldownRegistry{interval: interval, last: make(map[cooldownKey]time.Time)}
}

// Interval returns the active cooldown.
func (r *CooldownRegistry) Interval() time.Duration {
	return r.interval
}

// SetInterval changes the cooldown without forgetting earlier emissions.
func (r *CooldownRegistry) SetInterval(interval time.Duration) {
	r.interval = interval
}

// Allow reports whether an alert of kind for instrument may be emitted at now.
func (r *CooldownRegistry) Allow(instrument string, kind ConditionType, now time.Time) bool {
	last, ok := r.last[cooldownKey{instrument, kind}]
	if !ok || r.interval <= 0 {
		return true
	}
	return now.Sub(last) >= r.interval
}

// Record stores now as the latest emission for the key.
func (r *CooldownRegistry) Record(instrument string, kind ConditionType, now time.Time) {
	r.last[cooldownKey{instrument, kind}] = now
}

// Last returns the latest emission time for the key, if any.
func (r *CooldownRegistry) Last(instrument string, kind ConditionType) (time.Time, bool) {
	t, ok := r.last[cooldownKey{instrument, kind}]
	return t, ok
}

// Len is the number of tracked keys.
func (r *CooldownRegistry) Len() int {
	return len(r.last)
}
