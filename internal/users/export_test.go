package users

var ListQuery = listQuery
var RoleQuery = roleQuery
