package dynamo

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/driftsec/phishdeck/internal/domain"
	"github.com/driftsec/phishdeck/internal/store"
)

func (b *Backend) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var item userItem
	found, err := b.getItem(ctx, "get user", entityUser, userPartition, skUserPrefix+id, &item)
	if err != nil || !found {
		return nil, err
	}
	u := item.user()
	return &u, nil
}

func (b *Backend) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	in := b.partitionQuery(userPartition, "")
	in.FilterExpression = aws.String("#e = :email")
	in.ExpressionAttributeNames = map[string]string{"#e": "email"}
	in.ExpressionAttributeValues[":email"] = &types.AttributeValueMemberS{
		Value: strings.ToLower(strings.TrimSpace(email)),
	}

	items, err := b.queryAll(ctx, in)
	if err != nil {
		return nil, b.wrap("get user by email", entityUser, err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	var item userItem
	if err := attributevalue.UnmarshalMap(items[0], &item); err != nil {
		return nil, fmt.Errorf("get user by email: decode item: %w", err)
	}
	u := item.user()
	return &u, nil
}

func (b *Backend) ListUsers(ctx context.Context, orgID string) ([]domain.User, error) {
	out := []domain.User{}
	in := b.partitionQuery(userPartition, "")
	in.FilterExpression = aws.String("#o = :org")
	in.ExpressionAttributeNames = map[string]string{"#o": "organization_id"}
	in.ExpressionAttributeValues[":org"] = &types.AttributeValueMemberS{Value: orgID}

	items, err := b.queryAll(ctx, in)
	if err != nil {
		handled, werr := b.listDegrade("list users", entityUser, err)
		if handled {
			return out, nil
		}
		return nil, werr
	}

	var raw []userItem
	if err := attributevalue.UnmarshalListOfMaps(items, &raw); err != nil {
		return nil, fmt.Errorf("list users: decode items: %w", err)
	}
	for _, item := range raw {
		out = append(out, item.user())
	}
	return out, nil
}

func (b *Backend) CreateUser(ctx context.Context, u *domain.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if err := u.Validate(); err != nil {
		return err
	}
	// Email uniqueness: the relational backend relies on a constraint, here
	// we look before we write.
	existing, err := b.GetUserByEmail(ctx, u.Email)
	if err != nil && !store.IsNotProvisioned(err) {
		return err
	}
	if existing != nil {
		return fmt.Errorf("user email %q already registered", u.Email)
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	ts := now()
	u.CreatedAt, u.UpdatedAt = ts, ts
	return b.putItem(ctx, "create user", entityUser, newUserItem(*u))
}

func (b *Backend) UpdateUser(ctx context.Context, id string, u store.UserUpdate) (*domain.User, error) {
	cur, err := b.GetUser(ctx, id)
	if err != nil || cur == nil {
		return nil, err
	}

	changed := false
	if u.Email != nil {
		cur.Email = strings.ToLower(strings.TrimSpace(*u.Email))
		changed = true
	}
	if u.PasswordHash != nil {
		cur.PasswordHash = *u.PasswordHash
		changed = true
	}
	if u.FirstName != nil {
		cur.FirstName = *u.FirstName
		changed = true
	}
	if u.LastName != nil {
		cur.LastName = *u.LastName
		changed = true
	}
	if u.IsAdmin != nil {
		cur.IsAdmin = *u.IsAdmin
		changed = true
	}
	if u.FailedLogins != nil {
		cur.FailedLogins = *u.FailedLogins
		changed = true
	}
	if u.AccountLocked != nil {
		cur.AccountLocked = *u.AccountLocked
		// Unlocking resets the lockout bookkeeping with it.
		if !*u.AccountLocked {
			cur.LockedUntil = nil
			cur.FailedLogins = 0
		}
		changed = true
	}
	if u.LockedUntil != nil {
		cur.LockedUntil = u.LockedUntil
		changed = true
	}
	if u.OrgName != nil {
		cur.OrgName = *u.OrgName
		changed = true
	}

	if !changed {
		return cur, nil
	}
	cur.UpdatedAt = now()
	if err := b.putItem(ctx, "update user", entityUser, newUserItem(*cur)); err != nil {
		return nil, err
	}
	return cur, nil
}

// DeleteUser removes the user and cascades to their reset tokens.
func (b *Backend) DeleteUser(ctx context.Context, id string) (bool, error) {
	tokens, err := b.ListResetTokens(ctx, id)
	if err != nil {
		return false, err
	}
	for _, t := range tokens {
		if ok, err := b.deleteKey(ctx, "delete user tokens", entityResetToken,
			tokenPartition, skTokenPrefix+t.ID); !ok {
			return false, err
		}
	}
	return b.deleteKey(ctx, "delete user", entityUser, userPartition, skUserPrefix+id)
}

// Password reset tokens.

func (b *Backend) GetResetToken(ctx context.Context, token string) (*domain.PasswordResetToken, error) {
	in := b.partitionQuery(tokenPartition, "")
	in.FilterExpression = aws.String("#t = :token")
	in.ExpressionAttributeNames = map[string]string{"#t": "token"}
	in.ExpressionAttributeValues[":token"] = &types.AttributeValueMemberS{Value: token}

	items, err := b.queryAll(ctx, in)
	if err != nil {
		return nil, b.wrap("get reset token", entityResetToken, err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	var item tokenItem
	if err := attributevalue.UnmarshalMap(items[0], &item); err != nil {
		return nil, fmt.Errorf("get reset token: decode item: %w", err)
	}
	t := item.token()
	return &t, nil
}

func (b *Backend) ListResetTokens(ctx context.Context, userID string) ([]domain.PasswordResetToken, error) {
	out := []domain.PasswordResetToken{}
	in := b.partitionQuery(tokenPartition, "")
	in.FilterExpression = aws.String("#u = :user")
	in.ExpressionAttributeNames = map[string]string{"#u": "user_id"}
	in.ExpressionAttributeValues[":user"] = &types.AttributeValueMemberS{Value: userID}

	items, err := b.queryAll(ctx, in)
	if err != nil {
		handled, werr := b.listDegrade("list reset tokens", entityResetToken, err)
		if handled {
			return out, nil
		}
		return nil, werr
	}

	var raw []tokenItem
	if err := attributevalue.UnmarshalListOfMaps(items, &raw); err != nil {
		return nil, fmt.Errorf("list reset tokens: decode items: %w", err)
	}
	for _, item := range raw {
		out = append(out, item.token())
	}
	return out, nil
}

func (b *Backend) CreateResetToken(ctx context.Context, t *domain.PasswordResetToken) error {
	if t.UserID == "" || t.Token == "" {
		return fmt.Errorf("reset token requires a user reference and a token value")
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	ts := now()
	t.CreatedAt, t.UpdatedAt = ts, ts
	return b.putItem(ctx, "create reset token", entityResetToken, newTokenItem(*t))
}

// ConsumeResetToken spends a live token and returns it.
// (nil, nil) means the token is absent, already spent, or expired.
func (b *Backend) ConsumeResetToken(ctx context.Context, token string) (*domain.PasswordResetToken, error) {
	cur, err := b.GetResetToken(ctx, token)
	if err != nil || cur == nil {
		return nil, err
	}
	ts := now()
	if !cur.Usable(ts) {
		return nil, nil
	}
	cur.Used = true
	cur.UpdatedAt = ts
	if err := b.putItem(ctx, "consume reset token", entityResetToken, newTokenItem(*cur)); err != nil {
		return nil, err
	}
	return cur, nil
}

func (b *Backend) DeleteResetToken(ctx context.Context, id string) (bool, error) {
	return b.deleteKey(ctx, "delete reset token", entityResetToken,
		tokenPartition, skTokenPrefix+id)
}
