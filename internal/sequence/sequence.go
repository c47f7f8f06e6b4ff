// Package sequence формирует номера счетов вида {prefix}{YYYYMMDD}-{NNNN}.
package sequence

import (
	"fmt"
	"time"
)

// Next возвращает следующий номер счёта для пары (день, префикс).
// countExistingToday — число счетов, уже созданных в этот календарный день
// с тем же префиксом; счётчик четырёхзначный, начинается с 0001.
//
// Функция — чистый форматтер. Защита от выдачи одинаковых номеров
// конкурентными вызовами целиком лежит на вызывающей стороне: подсчёт и
// вставка счёта должны выполняться в одной транзакции с изоляцией,
// исключающей чтение одного и того же значения счётчика двумя
// транзакциями до фиксации любой из них.
func Next(day time.Time, prefix string, countExistingToday int) string {
	return fmt.Sprintf("%s%s-%04d", prefix, day.Format("20060102"), countExistingToday+1)
}
