package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/zabira-api/internal/domain"
)

const (
	emailIndex    = "email-index"
	usernameIndex = "username_key-index"

	// username_key is the lower-cased username, indexed for case-insensitive lookups.
	attrUsernameKey = "username_key"
	attrOwnerID     = "owner_id"

	// Email guard items share the users table and reserve an address for one
	// user. They carry no email attribute, so they never appear in email-index.
	emailGuardPrefix = "EMAIL#"

	notExists = "attribute_not_exists(user_id)"
	exists    = "attribute_exists(user_id)"
)

// UserRepo provides typed DynamoDB operations for the users table.
type UserRepo struct {
	client    API
	tableName string
	now       func() time.Time
}

func NewUserRepo(client API, tableName string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName, now: func() time.Time { return time.Now().UTC() }}
}

// Create writes the user and its email guard in one transaction. A taken
// address fails the guard's condition and yields domain.ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	if u.Username != "" {
		item[attrUsernameKey] = &types.AttributeValueMemberS{Value: strings.ToLower(u.Username)}
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: r.guardPut(u.Email, u.UserID)},
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                item,
				ConditionExpression: aws.String(notExists),
			}},
		},
	})
	if err != nil {
		if failed := conditionFailures(err); len(failed) > 0 {
			return fmt.Errorf("email %s: %w", u.Email, domain.ErrConflict)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepo) get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(domain.FieldUserID, userID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, domain.ErrNotFound
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.queryGSI(ctx, emailIndex, domain.FieldEmail, strings.ToLower(email))
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if username == "" {
		return nil, domain.ErrNotFound
	}
	return r.queryGSI(ctx, usernameIndex, attrUsernameKey, strings.ToLower(username))
}

// Update applies a partial update. Changing the email moves the email guard
// in the same transaction as the user write.
func (r *UserRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	fields := make(map[string]interface{}, len(updates)+2)
	for k, v := range updates {
		fields[k] = v
	}
	fields[domain.FieldUpdatedAt] = r.now()
	if name, ok := fields[domain.FieldUsername].(string); ok {
		fields[attrUsernameKey] = strings.ToLower(name)
	}
	ue, err := buildUpdateExpr(fields)
	if err != nil {
		return err
	}

	newEmail, changing := fields[domain.FieldEmail].(string)
	var oldEmail string
	if changing {
		cur, err := r.get(ctx, userID)
		if err != nil {
			return err
		}
		oldEmail = cur.Email
		changing = !strings.EqualFold(oldEmail, newEmail)
	}

	if !changing {
		_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(r.tableName),
			Key:                       strKey(domain.FieldUserID, userID),
			UpdateExpression:          aws.String(ue.Expr),
			ConditionExpression:       aws.String(exists),
			ExpressionAttributeNames:  ue.Names,
			ExpressionAttributeValues: ue.Values,
		})
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
		}
		return err
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: &types.Update{
				TableName:                 aws.String(r.tableName),
				Key:                       strKey(domain.FieldUserID, userID),
				UpdateExpression:          aws.String(ue.Expr),
				ConditionExpression:       aws.String(exists),
				ExpressionAttributeNames:  ue.Names,
				ExpressionAttributeValues: ue.Values,
			}},
			{Put: r.guardPut(newEmail, userID)},
			{Delete: &types.Delete{
				TableName: aws.String(r.tableName),
				Key:       strKey(domain.FieldUserID, emailGuardPrefix+strings.ToLower(oldEmail)),
			}},
		},
	})
	if err != nil {
		failed := conditionFailures(err)
		switch {
		case failed[0]:
			return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
		case failed[1]:
			return fmt.Errorf("email %s: %w", newEmail, domain.ErrConflict)
		}
		return fmt.Errorf("change email: %w", err)
	}
	return nil
}

func (r *UserRepo) guardPut(email, userID string) *types.Put {
	return &types.Put{
		TableName: aws.String(r.tableName),
		Item: map[string]types.AttributeValue{
			domain.FieldUserID: &types.AttributeValueMemberS{Value: emailGuardPrefix + strings.ToLower(email)},
			attrOwnerID:        &types.AttributeValueMemberS{Value: userID},
		},
		ConditionExpression: aws.String(notExists),
	}
}

// conditionFailures reports which transaction items failed their condition.
func conditionFailures(err error) map[int]bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return nil
	}
	failed := map[int]bool{}
	for i, reason := range tce.CancellationReasons {
		if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
			failed[i] = true
		}
	}
	return failed
}

func (r *UserRepo) queryGSI(ctx context.Context, index, attr, value string) (*domain.User, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, domain.ErrNotFound
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Items[0], &u); err != nil {
		return nil, err
	}
	return &u, nil
}
