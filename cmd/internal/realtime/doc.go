// Package realtime pushes chat-room messages to WebSocket subscribers.
//
// Hub keeps one Room per chat room id with live clients; Publish fans a stored
// message out to the room without blocking. WSGateway upgrades
// /messages/ws?chatroom_id=N, joins the client to its room and, when a Sender
// is configured, accepts message.send frames from the client.
package realtime
