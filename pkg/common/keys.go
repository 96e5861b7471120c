package common

import "fmt"

var (
	// Session keys
	sessionPrefix string = "nims:session"
	sessionState  string = "nims:session:state:%s" // sessionId
	sessionIndex  string = "nims:session:index"

	// Gateway keys
	gatewayInitLock string = "nims:gateway:init:%s:lock" // name
)

var Keys = &redisKeys{}

type redisKeys struct{}

// Session keys
func (rk *redisKeys) SessionPrefix() string {
	return sessionPrefix
}

func (rk *redisKeys) SessionState(sessionId string) string {
	return fmt.Sprintf(sessionState, sessionId)
}

func (rk *redisKeys) SessionIndex() string {
	return sessionIndex
}

// Gateway keys
func (rk *redisKeys) GatewayInitLock(name string) string {
	return fmt.Sprintf(gatewayInitLock, name)
}
