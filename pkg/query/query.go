package query

import (
	"encoding/json"
	"fmt"
	"strings"
)

// QueryType represents the type of MongoDB operation
type QueryType string

const (
	InsertOne        QueryType = "insertOne"
	FindOne          QueryType = "findOne"
	UpdateOne        QueryType = "updateOne"
	FindOneAndUpdate QueryType = "findOneAndUpdate"
	DeleteOne        QueryType = "deleteOne"
)

// GenerateRawQuery generates a MongoDB shell query string from data
// Example: GenerateRawQuery("clients", InsertOne, doc)
// Returns: "db.clients.insertOne({'field':'value'})"
func GenerateRawQuery(collection string, queryType QueryType, data any) string {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Sprintf("db.%s.%s(...)", collection, queryType)
	}

	return fmt.Sprintf("db.%s.%s(%s)", collection, queryType, mongoJSONFormat(string(jsonData)))
}

// GenerateRawQueryWithFilter generates a MongoDB query with filter and update
// Example: GenerateRawQueryWithFilter("refresh_tokens", UpdateOne, filter, update)
// Returns: "db.refresh_tokens.updateOne({'_id':'xxx'}, {'$set':{...}})"
func GenerateRawQueryWithFilter(collection string, queryType QueryType, filter any, data any) string {
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return fmt.Sprintf("db.%s.%s(...)", collection, queryType)
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Sprintf("db.%s.%s(...)", collection, queryType)
	}

	return fmt.Sprintf("db.%s.%s(%s, %s)", collection, queryType,
		mongoJSONFormat(string(filterJSON)), mongoJSONFormat(string(dataJSON)))
}

// mongoJSONFormat converts JSON format to MongoDB shell format
func mongoJSONFormat(jsonStr string) string {
	result := strings.ReplaceAll(jsonStr, `"`, `'`)
	result = strings.ReplaceAll(result, `\'`, `'`)
	result = strings.ReplaceAll(result, `\\`, `\`)

	return result
}

// GenerateInsertQuery is a convenience function for insertOne operations
func GenerateInsertQuery(collection string, data any) string {
	return GenerateRawQuery(collection, InsertOne, data)
}

// GenerateFindQuery is a convenience function for findOne operations
func GenerateFindQuery(collection string, filter any) string {
	return GenerateRawQuery(collection, FindOne, filter)
}

// GenerateUpdateQuery is a convenience function for updateOne operations
func GenerateUpdateQuery(collection string, filter any, update any) string {
	return GenerateRawQueryWithFilter(collection, UpdateOne, filter, update)
}

// GenerateFindOneAndUpdateQuery is a convenience function for findOneAndUpdate operations
func GenerateFindOneAndUpdateQuery(collection string, filter any, update any) string {
	return GenerateRawQueryWithFilter(collection, FindOneAndUpdate, filter, update)
}

// GenerateDeleteQuery is a convenience function for deleteOne operations
func GenerateDeleteQuery(collection string, filter any) string {
	return GenerateRawQuery(collection, DeleteOne, filter)
}
