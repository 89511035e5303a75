package tenants

var FindQuery = findQuery
