// Package fanout delivers domain events to clients and integrations.
//
// Every event runs the same fixed order:
//
//  1. Realtime publish to person:<id> and chat:<id> channels, framed as
//     {"type":"dispatch_data","action":...,"data":...}. Fire-and-forget.
//  2. Webhook POST to the tenant's registered hook for the event's
//     trigger, with a short timeout and no retry.
//  3. Email, only for new messages, to offline members with an address
//     on file, throttled per project.
//
// The realtime tier is pluggable: Broadcaster keeps subscriptions in
// process, RedisPublisher/RedisSubscriber move them through Redis pub/sub
// when more than one instance serves traffic.
package fanout
