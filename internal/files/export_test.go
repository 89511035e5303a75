package files

var FindQuery = findQuery
var HistoryBuilder = historyBuilder
