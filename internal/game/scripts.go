package game

import "github.com/redis/go-redis/v9"

// Every multi-key mutation whose outcome depends on stored state runs as a Lua
// script so a concurrent reader never sees it half applied.

// casRoundScript sets round fields only when the round is still in the
// expected state (and, when given, the expected game).
//
// KEYS[1] round hash
// ARGV[1] expected state, ARGV[2] expected game id or "", ARGV[3..] field/value pairs
var casRoundScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state') or 'INACTIVE'
if state ~= ARGV[1] then
	return 0
end
if ARGV[2] ~= '' and redis.call('HGET', KEYS[1], 'game_id') ~= ARGV[2] then
	return 0
end
for i = 3, #ARGV, 2 do
	redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
return 1
`)

// placeBetScript validates the betting window, membership and balance, then
// deducts the stake, records the bet, joins both round sets and starts the
// countdown if the round was idle. A round without a game id was never reset
// and has no committed seed, so it takes no bets.
//
// KEYS[1] round, KEYS[2] participants, KEYS[3] in-round, KEYS[4] player
// ARGV[1] username, ARGV[2] amount, ARGV[3] auto cashout or "",
// ARGV[4] now ms, ARGV[5] betting close ms, ARGV[6] countdown end ms,
// ARGV[7] countdown seconds, ARGV[8] default balance
var placeBetScript = redis.NewScript(`
local gameID = redis.call('HGET', KEYS[1], 'game_id')
if not gameID or gameID == '' then
	return {'window'}
end
local state = redis.call('HGET', KEYS[1], 'state') or 'INACTIVE'
local now = tonumber(ARGV[4])
if state ~= 'INACTIVE' and state ~= 'COUNTDOWN' then
	return {'window'}
end
if state == 'COUNTDOWN' then
	local ends = tonumber(redis.call('HGET', KEYS[1], 'countdown_ends_at') or '0')
	if ends - now <= tonumber(ARGV[5]) then
		return {'window'}
	end
end
if redis.call('SISMEMBER', KEYS[2], ARGV[1]) == 1 then
	return {'already'}
end
redis.call('HSETNX', KEYS[4], 'balance', ARGV[8])
local balance = redis.call('HGET', KEYS[4], 'balance')
if tonumber(balance) < tonumber(ARGV[2]) then
	return {'balance', balance}
end
local newBalance = redis.call('HINCRBYFLOAT', KEYS[4], 'balance', '-' .. ARGV[2])
redis.call('HSET', KEYS[4], 'bet_amount', ARGV[2], 'auto_cashout', ARGV[3])
redis.call('HDEL', KEYS[4], 'cashed_out_at', 'winnings')
redis.call('SADD', KEYS[2], ARGV[1])
redis.call('SADD', KEYS[3], ARGV[1])
local started = '0'
if state == 'INACTIVE' then
	redis.call('HSET', KEYS[1], 'state', 'COUNTDOWN', 'countdown', ARGV[7], 'countdown_ends_at', ARGV[6])
	started = '1'
end
local joined = redis.call('SCARD', KEYS[2])
return {'ok', newBalance, started, tostring(joined)}
`)

// settleScript is the single settlement path for manual and automatic
// cashouts. Removing the player from the in-round set is the linearization
// point: only the caller whose SREM succeeds credits the payout.
//
// KEYS[1] round, KEYS[2] in-round, KEYS[3] player
// ARGV[1] username, ARGV[2] game id, ARGV[3] multiplier, ARGV[4] payout
var settleScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'state') ~= 'ACTIVE' then
	return {'inactive'}
end
if redis.call('HGET', KEYS[1], 'game_id') ~= ARGV[2] then
	return {'inactive'}
end
if redis.call('SREM', KEYS[2], ARGV[1]) == 0 then
	return {'settled'}
end
local balance = redis.call('HINCRBYFLOAT', KEYS[3], 'balance', ARGV[4])
redis.call('HSET', KEYS[3], 'cashed_out_at', ARGV[3], 'winnings', ARGV[4])
return {'ok', balance}
`)

// crashScript moves an ACTIVE round to CRASHED, appends the history entry and
// empties the in-round set, returning the players left in it.
//
// KEYS[1] round, KEYS[2] history, KEYS[3] in-round, KEYS[4] participants
// ARGV[1] game id, ARGV[2] crash point, ARGV[3] history entry JSON,
// ARGV[4] now ms, ARGV[5] history capacity
var crashScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'state') ~= 'ACTIVE' then
	return {'stale'}
end
if redis.call('HGET', KEYS[1], 'game_id') ~= ARGV[1] then
	return {'stale'}
end
redis.call('HSET', KEYS[1], 'state', 'CRASHED', 'multiplier', ARGV[2], 'crashed_at', ARGV[4])
redis.call('LPUSH', KEYS[2], ARGV[3])
redis.call('LTRIM', KEYS[2], 0, tonumber(ARGV[5]) - 1)
local losers = redis.call('SMEMBERS', KEYS[3])
redis.call('DEL', KEYS[3])
local reply = {'ok', tostring(redis.call('SCARD', KEYS[4]))}
for _, name in ipairs(losers) do
	table.insert(reply, name)
end
return reply
`)

// releaseLockScript deletes the tick lock only if we still own it.
var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// scriptStrings converts a Lua table reply into strings.
func scriptStrings(v interface{}) ([]string, error) {
	items, ok := v.([]interface{})
	if !ok || len(items) == 0 {
		return nil, ErrBadScriptReply
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch t := item.(type) {
		case string:
			out = append(out, t)
		case int64:
			out = append(out, formatInt(t))
		default:
			return nil, ErrBadScriptReply
		}
	}
	return out, nil
}
