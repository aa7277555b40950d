package repository

import (
	"context"
	"realtime_chat_service/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// RoomRepository definition chat room
type RoomRepository interface {
	CreateRoom(ctx context.Context, room *domain.ChatRoom) error
	FindByID(ctx context.Context, roomID string) (*domain.ChatRoom, error)
	UpdateRoom(ctx context.Context, room *domain.ChatRoom) error
	FindOnePrivateRoom(ctx context.Context, userA, userB string) (*domain.ChatRoom, error)
	// FindUserContacts 使用者所有聊天室的共同成員（去重、不含自己）
	FindUserContacts(ctx context.Context, userID string) ([]string, error)
}

type chatRepository struct {
	roomsColl *mongo.Collection
}

// NewMongoChatRepository create new mongo chat
func NewMongoChatRepository(db *mongo.Database) RoomRepository {
	return &chatRepository{
		roomsColl: db.Collection("rooms"),
	}
}

// CreateRoom create room
func (r *chatRepository) CreateRoom(ctx context.Context, room *domain.ChatRoom) error {
	_, err := r.roomsColl.InsertOne(ctx, room)
	return err
}

// FindByID find room by id
func (r *chatRepository) FindByID(ctx context.Context, roomID string) (*domain.ChatRoom, error) {
	var room domain.ChatRoom
	err := r.roomsColl.FindOne(ctx, bson.M{"_id": roomID}).Decode(&room)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// UpdateRoom update room info
func (r *chatRepository) UpdateRoom(ctx context.Context, room *domain.ChatRoom) error {
	filter := bson.M{"_id": room.ID}
	update := bson.M{"$set": room}
	_, err := r.roomsColl.UpdateOne(ctx, filter, update)
	return err
}

// FindOnePrivateRoom find private room
func (r *chatRepository) FindOnePrivateRoom(ctx context.Context, userA, userB string) (*domain.ChatRoom, error) {
	filter := bson.M{
		"is_group": false,
		"members": bson.M{
			"$all": []string{userA, userB},
		},
	}
	var room domain.ChatRoom
	err := r.roomsColl.FindOne(ctx, filter).Decode(&room)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// FindUserContacts find all co-members of the user's rooms
func (r *chatRepository) FindUserContacts(ctx context.Context, userID string) ([]string, error) {
	filter := bson.M{"members": userID}
	values, err := r.roomsColl.Distinct(ctx, "members", filter)
	if err != nil {
		return nil, err
	}

	contacts := make([]string, 0, len(values))
	for _, v := range values {
		id, ok := v.(string)
		if !ok || id == userID {
			continue
		}
		contacts = append(contacts, id)
	}
	return contacts, nil
}
